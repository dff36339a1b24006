package link

import (
	"errors"
	"fmt"
	"io"

	"gblink/hw/sio"
)

// Frame tags.
const (
	ClockResponse uint8 = 0
	ClockRequest  uint8 = 1
)

// FrameSize is the size in bytes of an encoded Frame.
const FrameSize = 2

// DisconnectedByte is the byte a transfer reads when the peer doesn't answer.
const DisconnectedByte = sio.DisconnectedByte

// Well-known ports.
const (
	DefaultDataPort      = 27500
	DefaultClockPort     = 27501
	DefaultDiscoveryPort = 27502
)

var (
	ErrShortFrame = errors.New("link: short frame")
	ErrUnknownTag = errors.New("link: unknown frame tag")
)

// A Frame is one message of the transfer protocol: a tag followed by the
// sender's pending byte.
type Frame struct {
	Tag     uint8
	Payload uint8
}

func (f Frame) String() string {
	switch f.Tag {
	case ClockRequest:
		return fmt.Sprintf("request(%02x)", f.Payload)
	case ClockResponse:
		return fmt.Sprintf("response(%02x)", f.Payload)
	}
	return fmt.Sprintf("frame(%02x,%02x)", f.Tag, f.Payload)
}

func (f Frame) MarshalBinary() ([]byte, error) {
	if f.Tag != ClockRequest && f.Tag != ClockResponse {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, f.Tag)
	}
	return []byte{f.Tag, f.Payload}, nil
}

// DecodeFrame decodes a frame from the first FrameSize bytes of buf.
func DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) < FrameSize {
		return Frame{}, ErrShortFrame
	}
	f := Frame{Tag: buf[0], Payload: buf[1]}
	if f.Tag != ClockRequest && f.Tag != ClockResponse {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownTag, f.Tag)
	}
	return f, nil
}

// ReadFrame reads exactly one frame from a stream.
func ReadFrame(r io.Reader) (Frame, error) {
	var buf [FrameSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortFrame
		}
		return Frame{}, err
	}
	return DecodeFrame(buf[:])
}

// WriteFrame writes f to a stream.
func WriteFrame(w io.Writer, f Frame) error {
	buf, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
