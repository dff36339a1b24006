package link

import (
	"io"
	"sync"

	"github.com/go-faster/jx"
)

// A TransferEvent describes one completed transfer.
type TransferEvent struct {
	Role      Role
	Initiator Role
	Sent      uint8
	Received  uint8
	Start     int64 // cycles
	Done      int64
	// Fallback is set when the disconnected byte was substituted to the
	// peer's, Cause says why.
	Fallback bool
	Cause    string
}

// Tracer writes transfers as JSON lines.
type Tracer struct {
	mu sync.Mutex
	w  io.Writer
	e  jx.Encoder
}

func NewTracer(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

// Transfer writes ev.
func (t *Tracer) Transfer(ev TransferEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := &t.e
	e.Reset()
	e.ObjStart()
	e.FieldStart("role")
	e.Str(ev.Role.String())
	e.FieldStart("initiator")
	e.Str(ev.Initiator.String())
	e.FieldStart("sent")
	e.Int(int(ev.Sent))
	e.FieldStart("received")
	e.Int(int(ev.Received))
	e.FieldStart("start")
	e.Int64(ev.Start)
	e.FieldStart("done")
	e.Int64(ev.Done)
	e.FieldStart("fallback")
	e.Bool(ev.Fallback)
	if ev.Cause != "" {
		e.FieldStart("cause")
		e.Str(ev.Cause)
	}
	e.ObjEnd()

	buf := append(e.Bytes(), '\n')
	_, err := t.w.Write(buf)
	return err
}
