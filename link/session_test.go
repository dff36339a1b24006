package link

import (
	"errors"
	"testing"
)

// countingChannel counts Close calls.
type countingChannel struct {
	Channel
	closed int
}

func (c *countingChannel) Close() error {
	c.closed++
	return c.Channel.Close()
}

func TestSessionDirections(t *testing.T) {
	dataP, dataS := Pipe()
	clockP, clockS := Pipe()
	p := NewSession(Primary, dataP, clockP, nil)
	s := NewSession(Secondary, dataS, clockS, nil)

	if err := p.sendRequest(0x42); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := dataS.Poll(); ok {
		t.Fatal("request went on the data channel")
	}
	f, ok, err := s.pollIncoming()
	if !ok || err != nil || f != (Frame{ClockRequest, 0x42}) {
		t.Fatalf("secondary polled %v, %t, %v", f, ok, err)
	}

	if err := s.sendResponse(0x99); err != nil {
		t.Fatal(err)
	}
	f, ok, err = p.pollIncoming()
	if !ok || err != nil || f != (Frame{ClockResponse, 0x99}) {
		t.Fatalf("primary polled %v, %t, %v", f, ok, err)
	}
}

func TestSessionSharedChannel(t *testing.T) {
	a, b := Pipe()
	ca := &countingChannel{Channel: a}
	p := NewSession(Primary, ca, nil, nil)
	s := NewSession(Secondary, b, nil, nil)

	if err := p.sendRequest(0x01); err != nil {
		t.Fatal(err)
	}
	if f, ok, _ := s.pollIncoming(); !ok || f.Tag != ClockRequest {
		t.Fatalf("secondary polled %v, %t", f, ok)
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if ca.closed != 1 {
		t.Errorf("shared channel closed %d times, want 1", ca.closed)
	}
}

func TestSessionFail(t *testing.T) {
	a, _ := Pipe()
	s := NewSession(Primary, a, nil, nil)
	if s.Err() != nil {
		t.Fatalf("new session: Err() = %v", s.Err())
	}
	if s.Role() != Primary {
		t.Errorf("Role() = %v, want %v", s.Role(), Primary)
	}

	cause := errors.New("connection reset")
	s.Fail(cause)
	s.Fail(errors.New("later"))

	err := s.Err()
	if !errors.Is(err, ErrSessionBroken) || !errors.Is(err, cause) {
		t.Errorf("Err() = %v, want it to wrap %v and %v", err, ErrSessionBroken, cause)
	}
}
