package link

import (
	"errors"
	"net"
)

// ErrSessionBroken is returned by Session.Err once a transport error
// occurred and no new transfer can go through.
var ErrSessionBroken = errors.New("link: session broken")

// A Session is the logical link between the two peers. The role is fixed
// for the whole life of the session.
//
// Clock requests travel on the clock channel and responses on the data
// channel, both may be the same channel. After the session is handed to the
// emulation loop, it's only accessed from there.
type Session struct {
	role  Role
	data  Channel
	clock Channel
	peer  net.Addr

	// ordered is set when every frame sent is delivered, in order.
	ordered bool

	err error
}

// NewSession creates a session over already established channels. clock
// can be nil, in that case data carries both directions.
func NewSession(role Role, data, clock Channel, peer net.Addr) *Session {
	if clock == nil {
		clock = data
	}
	_, lossy := data.(*packetChannel)
	return &Session{role: role, data: data, clock: clock, peer: peer, ordered: !lossy}
}

func (s *Session) Role() Role { return s.role }

// PeerAddr is the address the peer was discovered at, it can be nil for
// in-memory sessions.
func (s *Session) PeerAddr() net.Addr { return s.peer }

// Fail marks the session as unusable.
func (s *Session) Fail(err error) {
	if s.err == nil {
		s.err = errors.Join(ErrSessionBroken, err)
	}
}

// Err returns a non-nil error, wrapping ErrSessionBroken, once the session is
// unusable.
func (s *Session) Err() error { return s.err }

// Close closes the session channels.
func (s *Session) Close() error {
	err := s.data.Close()
	if s.clock != s.data {
		err = errors.Join(err, s.clock.Close())
	}
	return err
}

// sendRequest and sendResponse pick the channel for each direction.
func (s *Session) sendRequest(payload uint8) error {
	return s.clock.Send(Frame{Tag: ClockRequest, Payload: payload})
}

func (s *Session) sendResponse(payload uint8) error {
	return s.data.Send(Frame{Tag: ClockResponse, Payload: payload})
}

// pollIncoming polls the channel on which this side expects frames.
func (s *Session) pollIncoming() (Frame, bool, error) {
	if s.role == Primary {
		return s.data.Poll()
	}
	return s.clock.Poll()
}
