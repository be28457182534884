package mns

import (
	"time"

	"github.com/rs/zerolog"

	"mnsd/internal/registry"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultStopTimeout = 3 * time.Second
)

// Config encapsulates all tunables for Service construction.
type Config struct {
	// Transports lists the transport kinds to listen on. Empty means the
	// stream and packet defaults.
	Transports []Transport
	// StopTimeout bounds the wait for an accept loop to exit on shutdown.
	StopTimeout time.Duration
	// MaxReportSize caps the body of one event-report PUT. Zero means
	// obex.DefaultMaxBodySize.
	MaxReportSize int
	Logger        *zerolog.Logger
	Publisher     EventPublisher
}

// DefaultTransports returns the stream and packet transports on their
// default addresses.
func DefaultTransports() []Transport {
	return []Transport{
		StreamTransport{Address: DefaultStreamAddr},
		PacketTransport{Path: DefaultPacketPath},
	}
}

// New constructs a Service from Config. No endpoint is opened until the
// first instance registers.
func New(cfg Config) *Service {
	s := &Service{
		transports:  cfg.Transports,
		stopTimeout: cfg.StopTimeout,
		maxReport:   cfg.MaxReportSize,
		pub:         cfg.Publisher,
		acceptors:   make(map[Kind]*Acceptor),
	}
	if len(s.transports) == 0 {
		s.transports = DefaultTransports()
	}
	if s.stopTimeout <= 0 {
		s.stopTimeout = defaultStopTimeout
	}
	if s.pub == nil {
		s.pub = noopPublisher{}
	}
	if cfg.Logger != nil {
		s.log = cfg.Logger.With().Str("component", "mns").Logger()
	} else {
		s.log = zerolog.Nop()
	}
	s.reg = registry.New()
	s.router = newRouter(s.reg, s.log, s.pub)
	return s
}
