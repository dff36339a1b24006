package link

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"gblink/emu/log"
)

var modNet = log.NewModule("net")

// ErrClosed is returned by operations on a closed channel.
var ErrClosed = errors.New("link: channel closed")

// A Channel carries frames between the two peers of a session.
//
// Send and Poll are meant to be called from the emulation loop, they never
// block for longer than the channel write timeout.
type Channel interface {
	// Send sends one frame to the peer.
	Send(f Frame) error
	// Poll returns the next received frame, if any. Once the channel is
	// broken or closed, Poll returns the error that caused it, forever.
	Poll() (f Frame, ok bool, err error)
	Close() error
}

const queueSize = 16

// queue buffers received frames until the emulation loop polls them.
type queue struct {
	frames chan Frame
	done   chan struct{}
	once   sync.Once
	err    error // set before done is closed
}

func newQueue() *queue {
	return &queue{
		frames: make(chan Frame, queueSize),
		done:   make(chan struct{}),
	}
}

func (q *queue) poll() (Frame, bool, error) {
	select {
	case f := <-q.frames:
		return f, true, nil
	default:
	}
	select {
	case <-q.done:
		return Frame{}, false, q.err
	default:
		return Frame{}, false, nil
	}
}

func (q *queue) push(f Frame, stop <-chan struct{}) bool {
	select {
	case q.frames <- f:
		return true
	case <-stop:
		return false
	}
}

func (q *queue) finish(err error) {
	q.once.Do(func() {
		q.err = err
		close(q.done)
	})
}

func isClosed(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// streamChannel is a Channel over a stream connection (TCP).
type streamChannel struct {
	name         string
	conn         net.Conn
	writeTimeout time.Duration

	q        *queue
	stop     chan struct{}
	recvDone chan struct{}
	once     sync.Once
	closeErr error
}

func newStreamChannel(name string, conn net.Conn, writeTimeout time.Duration) *streamChannel {
	c := &streamChannel{
		name:         name,
		conn:         conn,
		writeTimeout: writeTimeout,
		q:            newQueue(),
		stop:         make(chan struct{}),
		recvDone:     make(chan struct{}),
	}
	go c.receive()
	return c
}

func (c *streamChannel) receive() {
	defer close(c.recvDone)
	for {
		f, err := ReadFrame(c.conn)
		if err != nil {
			if isClosed(c.stop) {
				err = ErrClosed
			} else {
				modNet.WarnZ("receive failed").
					String("chan", c.name).
					Error("err", err).
					End()
			}
			c.q.finish(err)
			return
		}

		modNet.DebugZ("received").
			String("chan", c.name).
			Stringer("frame", f).
			End()

		if !c.q.push(f, c.stop) {
			c.q.finish(ErrClosed)
			return
		}
	}
}

func (c *streamChannel) Send(f Frame) error {
	if isClosed(c.stop) {
		return ErrClosed
	}
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	modNet.DebugZ("send").
		String("chan", c.name).
		Stringer("frame", f).
		End()
	return WriteFrame(c.conn, f)
}

func (c *streamChannel) Poll() (Frame, bool, error) { return c.q.poll() }

func (c *streamChannel) Close() error {
	c.once.Do(func() {
		close(c.stop)
		c.closeErr = c.conn.Close()
		<-c.recvDone
	})
	return c.closeErr
}

// packetChannel is a Channel over a datagram socket (UDP). Only datagrams
// holding exactly one frame and coming from the peer are accepted.
type packetChannel struct {
	conn *net.UDPConn
	peer *net.UDPAddr
	// dialed sockets are connected to the peer and can't use WriteTo.
	dialed bool

	q        *queue
	stop     chan struct{}
	recvDone chan struct{}
	once     sync.Once
	closeErr error
}

func newPacketChannel(conn *net.UDPConn, peer *net.UDPAddr, dialed bool) *packetChannel {
	c := &packetChannel{
		conn:     conn,
		peer:     peer,
		dialed:   dialed,
		q:        newQueue(),
		stop:     make(chan struct{}),
		recvDone: make(chan struct{}),
	}
	go c.receive()
	return c
}

func sameUDPAddr(a, b *net.UDPAddr) bool {
	return a.Port == b.Port && a.IP.Equal(b.IP)
}

func (c *packetChannel) receive() {
	defer close(c.recvDone)

	var buf [64]byte
	for {
		n, from, err := c.conn.ReadFromUDP(buf[:])
		if err != nil {
			if isClosed(c.stop) {
				err = ErrClosed
			} else {
				modNet.WarnZ("receive failed").
					String("chan", "udp").
					Error("err", err).
					End()
			}
			c.q.finish(err)
			return
		}
		if !sameUDPAddr(from, c.peer) {
			modNet.DebugZ("dropped datagram from stranger").
				String("from", from.String()).
				End()
			continue
		}
		if n != FrameSize {
			modNet.DebugZ("dropped datagram").
				Int("size", n).
				End()
			continue
		}
		f, err := DecodeFrame(buf[:n])
		if err != nil {
			modNet.DebugZ("dropped datagram").
				Error("err", err).
				End()
			continue
		}
		if !c.q.push(f, c.stop) {
			c.q.finish(ErrClosed)
			return
		}
	}
}

func (c *packetChannel) Send(f Frame) error {
	if isClosed(c.stop) {
		return ErrClosed
	}
	buf, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	if c.dialed {
		_, err = c.conn.Write(buf)
	} else {
		_, err = c.conn.WriteToUDP(buf, c.peer)
	}
	return err
}

func (c *packetChannel) Poll() (Frame, bool, error) { return c.q.poll() }

func (c *packetChannel) Close() error {
	c.once.Do(func() {
		close(c.stop)
		c.closeErr = c.conn.Close()
		<-c.recvDone
	})
	return c.closeErr
}

// Pipe returns the two ends of an in-memory channel. Frames sent on one
// end are polled on the other; closing one end reads as io.EOF on the other.
func Pipe() (Channel, Channel) {
	a := &pipeChannel{q: newQueue(), stop: make(chan struct{})}
	b := &pipeChannel{q: newQueue(), stop: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

var errPipeFull = errors.New("link: pipe full")

type pipeChannel struct {
	q    *queue
	peer *pipeChannel
	stop chan struct{}
	once sync.Once
}

func (c *pipeChannel) Send(f Frame) error {
	if isClosed(c.stop) {
		return ErrClosed
	}
	if isClosed(c.peer.stop) {
		return io.EOF
	}
	select {
	case c.peer.q.frames <- f:
		return nil
	default:
		return errPipeFull
	}
}

func (c *pipeChannel) Poll() (Frame, bool, error) { return c.q.poll() }

func (c *pipeChannel) Close() error {
	c.once.Do(func() {
		close(c.stop)
		c.q.finish(ErrClosed)
		c.peer.q.finish(io.EOF)
	})
	return nil
}
