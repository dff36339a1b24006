package link

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"gblink/emu/log"
)

// A Link owns a session, possibly still being negotiated in the background.
//
// The session is published atomically once discovery succeeds. From then on,
// it belongs to the emulation loop and Link only closes it.
type Link struct {
	sess   atomic.Pointer[Session]
	g      errgroup.Group
	cancel context.CancelFunc

	done chan struct{}
	err  error // set before done is closed

	closeOnce sync.Once
	closeErr  error
}

// Connect starts discovery in the background and returns immediately.
func Connect(ctx context.Context, cfg Config) *Link {
	ctx, cancel := context.WithCancel(ctx)
	l := &Link{cancel: cancel, done: make(chan struct{})}
	l.g.Go(func() error {
		defer close(l.done)
		s, err := Discover(ctx, cfg)
		if err != nil {
			log.ModLink.WarnZ("discovery failed").Error("err", err).End()
			l.err = err
			return err
		}
		l.sess.Store(s)
		return nil
	})
	return l
}

// Established returns a Link over an already negotiated session.
func Established(s *Session) *Link {
	l := &Link{cancel: func() {}, done: make(chan struct{})}
	l.sess.Store(s)
	close(l.done)
	return l
}

// Session returns the negotiated session, or nil if discovery is still
// running or failed. It's safe to call on a nil Link.
func (l *Link) Session() *Session {
	if l == nil {
		return nil
	}
	return l.sess.Load()
}

// Wait blocks until discovery is over and returns its error.
func (l *Link) Wait() error {
	<-l.done
	return l.err
}

// Err returns the discovery error, without blocking. It's nil while
// discovery is running.
func (l *Link) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

// Close cancels discovery if it's still running, then closes the session.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		l.g.Wait()
		if s := l.sess.Load(); s != nil {
			l.closeErr = s.Close()
		}
	})
	return l.closeErr
}
