package mns

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mnsd/internal/obex"
)

// Session is one accepted connection together with its OBEX server
// session. It is owned by its Acceptor while tracked and closes itself
// when the peer goes away.
type Session struct {
	id     string
	kind   Kind
	remote string
	opened time.Time
	events atomic.Int64

	srv *obex.ServerSession
	log zerolog.Logger
}

// wire builds a session for an accepted raw connection. maxReport <= 0
// keeps the OBEX default body limit. On error the caller still owns raw and
// must close it.
func wire(raw net.Conn, t Transport, d Dispatcher, maxReport int, log zerolog.Logger) (*Session, error) {
	pc, err := t.Wrap(raw)
	if err != nil {
		return nil, wireError{kind: t.Kind(), err: err}
	}
	s := &Session{
		id:     uuid.NewString(),
		kind:   t.Kind(),
		remote: remoteString(raw.RemoteAddr()),
		opened: time.Now(),
	}
	s.log = log.With().Str("session", s.id).Str("remote", s.remote).Logger()
	s.srv = obex.NewServerSession(pc, &obexServer{dispatcher: d, log: s.log, events: &s.events}, s.log)
	s.srv.SetMaxBodySize(maxReport)
	return s, nil
}

// start serves the session in its own goroutine; onClosed runs after the
// connection is gone.
func (s *Session) start(onClosed func(*Session)) {
	go func() {
		if err := s.srv.Serve(); err != nil {
			s.log.Warn().Err(err).Msg("session ended with error")
		} else {
			s.log.Debug().Msg("session ended")
		}
		if onClosed != nil {
			onClosed(s)
		}
	}()
}

// Close closes the connection. Safe to call more than once.
func (s *Session) Close() error { return s.srv.Close() }

// Done is closed once the session has stopped serving.
func (s *Session) Done() <-chan struct{} { return s.srv.Done() }

func (s *Session) ID() string { return s.id }

func (s *Session) info() *SessionInfo {
	return &SessionInfo{ID: s.id, Kind: s.kind, Remote: s.remote, Opened: s.opened, Events: s.events.Load()}
}

func remoteString(a net.Addr) string {
	if a == nil {
		return ""
	}
	if s := a.String(); s != "" {
		return s
	}
	return a.Network()
}
