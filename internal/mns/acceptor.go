package mns

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Acceptor owns the listening endpoint of one transport kind. It accepts
// connections in its own goroutine and tracks at most one Session:
//
//	Idle -> Listening -> Stopping -> Stopped
//
// A failed listen goes straight from Idle to Stopped. A failed accept ends
// the loop and reports through onFailed; an acceptor never restarts itself.
type Acceptor struct {
	transport Transport
	router    Dispatcher
	log       zerolog.Logger
	pub       EventPublisher
	onFailed  func(*Acceptor)
	maxReport int

	mu       sync.Mutex
	state    State
	ln       net.Listener
	session  *Session
	accepted int

	shutdown atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

func newAcceptor(t Transport, router Dispatcher, log zerolog.Logger, pub EventPublisher, onFailed func(*Acceptor)) *Acceptor {
	return &Acceptor{
		transport: t,
		router:    router,
		log:       log.With().Str("kind", string(t.Kind())).Logger(),
		pub:       pub,
		onFailed:  onFailed,
		state:     StateIdle,
		done:      make(chan struct{}),
	}
}

func (a *Acceptor) Kind() Kind { return a.transport.Kind() }

func (a *Acceptor) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Addr returns the bound listener address, or nil when not listening.
func (a *Acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// Done is closed once the acceptor has fully stopped.
func (a *Acceptor) Done() <-chan struct{} { return a.done }

// Start opens the listening endpoint and launches the accept loop. A listen
// failure leaves the acceptor Stopped.
func (a *Acceptor) Start() error {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return ErrAcceptorStarted
	}
	ln, err := a.transport.Listen()
	if err != nil {
		a.state = StateStopped
		a.mu.Unlock()
		a.finish()
		acceptorFailures.WithLabelValues(string(a.Kind()), "listen").Inc()
		a.pub.Publish(Event{Name: EventAcceptorListenFailed, Kind: a.Kind(), InstanceID: -1, Fields: map[string]any{"error": err.Error()}})
		return listenError{kind: a.Kind(), addr: a.transport.Addr(), err: err}
	}
	wrapped := &closeOnceListener{Listener: ln}
	a.ln = wrapped
	a.state = StateListening
	a.mu.Unlock()

	acceptorsRunning.WithLabelValues(string(a.Kind())).Inc()
	a.log.Info().Str("addr", ln.Addr().String()).Msg("acceptor listening")
	a.pub.Publish(Event{Name: EventAcceptorStart, Kind: a.Kind(), InstanceID: -1, Fields: map[string]any{"addr": ln.Addr().String()}})
	go a.acceptLoop(wrapped)
	return nil
}

func (a *Acceptor) acceptLoop(ln net.Listener) {
	defer a.finish()
	for {
		conn, err := ln.Accept()
		if err != nil {
			failed := !a.shutdown.Load()
			if failed {
				a.log.Error().Err(err).Msg("accept failed")
				acceptorFailures.WithLabelValues(string(a.Kind()), "accept").Inc()
			} else {
				a.log.Debug().Msg("accept loop stopping")
			}
			a.cleanup()
			if failed {
				a.pub.Publish(Event{Name: EventAcceptorFailed, Kind: a.Kind(), InstanceID: -1, Fields: map[string]any{"error": err.Error()}})
				if a.onFailed != nil {
					a.onFailed(a)
				}
			}
			return
		}
		connectionsAccepted.WithLabelValues(string(a.Kind())).Inc()
		a.log.Info().Str("remote", remoteString(conn.RemoteAddr())).Msg("inbound connection")

		sess, err := wire(conn, a.transport, a.router, a.maxReport, a.log)
		if err != nil {
			a.log.Error().Err(err).Msg("session wiring failed")
			acceptorFailures.WithLabelValues(string(a.Kind()), "wire").Inc()
			a.pub.Publish(Event{Name: EventWireFailed, Kind: a.Kind(), InstanceID: -1, Fields: map[string]any{"error": err.Error()}})
			_ = conn.Close()
			continue
		}
		a.track(sess)
	}
}

// track makes sess the tracked session and starts it. A superseded session
// is closed so that only one connection per kind stays open.
func (a *Acceptor) track(sess *Session) {
	a.mu.Lock()
	if a.state != StateListening {
		a.mu.Unlock()
		_ = sess.Close()
		return
	}
	prev := a.session
	a.session = sess
	a.accepted++
	a.mu.Unlock()

	if prev != nil {
		a.log.Info().Str("old", prev.ID()).Str("new", sess.ID()).Msg("replacing tracked session")
		a.pub.Publish(Event{Name: EventSessionReplaced, Kind: a.Kind(), InstanceID: -1, Fields: map[string]any{"old": prev.ID(), "new": sess.ID()}})
		_ = prev.Close()
	} else {
		sessionsActive.WithLabelValues(string(a.Kind())).Inc()
	}
	a.pub.Publish(Event{Name: EventSessionOpen, Kind: a.Kind(), InstanceID: -1, Fields: map[string]any{"session": sess.ID(), "remote": sess.remote}})
	sess.start(a.untrack)
}

// untrack runs when a session ends. Only the tracked session is cleared; a
// superseded one has already been replaced.
func (a *Acceptor) untrack(sess *Session) {
	a.mu.Lock()
	tracked := a.session == sess
	if tracked {
		a.session = nil
	}
	a.mu.Unlock()
	if tracked {
		sessionsActive.WithLabelValues(string(a.Kind())).Dec()
	}
	a.pub.Publish(Event{Name: EventSessionClosed, Kind: a.Kind(), InstanceID: -1, Fields: map[string]any{"session": sess.ID(), "events": sess.events.Load()}})
}

// Stop closes the listener and the tracked session, then waits up to
// timeout for the accept loop to exit. On timeout it returns ErrStopTimeout
// and the loop is left to unwind on its own.
func (a *Acceptor) Stop(timeout time.Duration) error {
	a.shutdown.Store(true)
	a.mu.Lock()
	switch a.state {
	case StateIdle:
		a.state = StateStopped
		a.mu.Unlock()
		a.finish()
		return nil
	case StateStopped:
		a.mu.Unlock()
		return nil
	}
	a.state = StateStopping
	ln := a.ln
	a.mu.Unlock()

	_ = ln.Close()
	a.closeSession()

	select {
	case <-a.done:
		return nil
	case <-time.After(timeout):
		a.log.Warn().Dur("timeout", timeout).Msg("acceptor did not stop in time")
		return ErrStopTimeout
	}
}

// cleanup runs on the accept goroutine once the loop has ended.
func (a *Acceptor) cleanup() {
	a.mu.Lock()
	wasRunning := a.state == StateListening || a.state == StateStopping
	a.state = StateStopped
	ln := a.ln
	a.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	a.closeSession()
	if wasRunning {
		acceptorsRunning.WithLabelValues(string(a.Kind())).Dec()
	}
	a.log.Info().Msg("acceptor stopped")
	a.pub.Publish(Event{Name: EventAcceptorStop, Kind: a.Kind(), InstanceID: -1})
}

func (a *Acceptor) closeSession() {
	a.mu.Lock()
	sess := a.session
	a.session = nil
	a.mu.Unlock()
	if sess != nil {
		sessionsActive.WithLabelValues(string(a.Kind())).Dec()
		_ = sess.Close()
	}
}

func (a *Acceptor) finish() { a.doneOnce.Do(func() { close(a.done) }) }

func (a *Acceptor) info() AcceptorInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	ai := AcceptorInfo{Kind: a.Kind(), State: a.state, Addr: a.transport.Addr(), Accepted: a.accepted}
	if a.ln != nil && a.state == StateListening {
		ai.Addr = a.ln.Addr().String()
	}
	if a.session != nil {
		ai.Session = a.session.info()
	}
	return ai
}

// closeOnceListener makes Close idempotent; a second close is not an error.
type closeOnceListener struct {
	net.Listener
	once sync.Once
	err  error
}

func (l *closeOnceListener) Close() error {
	l.once.Do(func() { l.err = l.Listener.Close() })
	return l.err
}
