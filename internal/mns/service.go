package mns

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mnsd/internal/registry"
)

// Service is the facade shared by all MAP client instances. It owns the
// callback registry and one acceptor per configured transport kind.
// Acceptors run while at least one instance is registered.
type Service struct {
	transports  []Transport
	stopTimeout time.Duration
	maxReport   int
	log         zerolog.Logger
	pub         EventPublisher
	reg         *registry.Registry
	router      *Router

	// lifecycleMu orders register/unregister transitions so that acceptor
	// start/stop always matches one total order of the calls. Dispatch never
	// takes it.
	lifecycleMu sync.Mutex

	mu        sync.Mutex
	acceptors map[Kind]*Acceptor
	closed    bool
}

// RegisterCallback routes reports for instanceID to l, replacing any
// previous listener for that id, and starts any acceptor that is not
// running. Failures are logged only.
func (s *Service) RegisterCallback(instanceID int, l registry.Listener) {
	if l == nil {
		s.log.Warn().Int("instance", instanceID).Msg("register with nil listener ignored")
		return
	}
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.isClosed() {
		s.log.Warn().Int("instance", instanceID).Msg("register after close ignored")
		return
	}
	first := s.reg.Register(instanceID, l)
	registeredInstances.Set(float64(s.reg.Len()))
	s.log.Info().Int("instance", instanceID).Bool("first", first).Msg("callback registered")
	s.startAcceptors()
}

// UnregisterCallback removes instanceID. Unknown ids are a no-op. When the
// last instance goes away every acceptor is stopped and its session closed.
func (s *Service) UnregisterCallback(instanceID int) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	removed, empty := s.reg.Unregister(instanceID)
	s.afterUnregister(instanceID, removed, empty)
}

// UnregisterListener removes instanceID only while l is still its
// registered listener. A consumer that has been replaced by a later
// registration leaves its successor in place.
func (s *Service) UnregisterListener(instanceID int, l registry.Listener) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	removed, empty := s.reg.UnregisterListener(instanceID, l)
	s.afterUnregister(instanceID, removed, empty)
}

// afterUnregister must be called with lifecycleMu held.
func (s *Service) afterUnregister(instanceID int, removed, empty bool) {
	registeredInstances.Set(float64(s.reg.Len()))
	if !removed {
		s.log.Debug().Int("instance", instanceID).Msg("unregister skipped; instance unknown or re-registered")
	} else {
		s.log.Info().Int("instance", instanceID).Msg("callback unregistered")
	}
	if empty {
		if err := s.stopAcceptors(); err != nil {
			s.log.Warn().Err(err).Msg("acceptor shutdown incomplete")
		}
	}
}

// Close drops every registration and stops all acceptors. The service
// cannot be used afterwards.
func (s *Service) Close() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	ids := s.reg.Clear()
	registeredInstances.Set(0)
	s.router.detach()
	s.log.Info().Ints("instances", ids).Msg("service closing")
	return s.stopAcceptors()
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// startAcceptors starts an acceptor for every configured transport kind that
// has none. A listen failure is logged and leaves the kind without an
// acceptor so that the next registration retries.
func (s *Service) startAcceptors() {
	for _, t := range s.transports {
		s.mu.Lock()
		if cur, ok := s.acceptors[t.Kind()]; ok && cur.State() != StateStopped {
			s.mu.Unlock()
			continue
		}
		a := newAcceptor(t, s.router, s.log, s.pub, s.onAcceptFailed)
		a.maxReport = s.maxReport
		s.acceptors[t.Kind()] = a
		s.mu.Unlock()

		if err := a.Start(); err != nil {
			s.log.Error().Err(err).Str("kind", string(t.Kind())).Msg("acceptor failed to start")
			s.forget(a)
		}
	}
}

// stopAcceptors detaches every acceptor from the service and stops them in
// parallel, each bounded by the stop timeout.
func (s *Service) stopAcceptors() error {
	s.mu.Lock()
	stopping := make([]*Acceptor, 0, len(s.acceptors))
	for k, a := range s.acceptors {
		stopping = append(stopping, a)
		delete(s.acceptors, k)
	}
	s.mu.Unlock()
	if len(stopping) == 0 {
		return nil
	}
	s.log.Info().Int("acceptors", len(stopping)).Msg("stopping acceptors")
	var g errgroup.Group
	for _, a := range stopping {
		a := a
		g.Go(func() error { return a.Stop(s.stopTimeout) })
	}
	return g.Wait()
}

// onAcceptFailed is the acceptor's failure notification. The failed
// acceptor is dropped; the next RegisterCallback builds a new one.
func (s *Service) onAcceptFailed(a *Acceptor) {
	s.forget(a)
	s.log.Warn().Str("kind", string(a.Kind())).Msg("acceptor terminated; it will be recreated on next registration")
}

func (s *Service) forget(a *Acceptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acceptors[a.Kind()] == a {
		delete(s.acceptors, a.Kind())
	}
}

func (s *Service) acceptor(k Kind) *Acceptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acceptors[k]
}
