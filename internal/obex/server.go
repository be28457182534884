package obex

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Request is a complete (possibly multi-packet) PUT request as seen by a
// Handler. Headers from every packet are kept in arrival order; Body is the
// concatenated Body/EndOfBody payload.
type Request struct {
	Headers Headers
	Body    []byte
}

// Handler implements the server side of an OBEX profile.
type Handler interface {
	// OnConnect decides whether to accept a CONNECT and returns the headers
	// to include in the response. ConnectionID is added by the session.
	OnConnect(hdrs Headers) (ResponseCode, Headers)
	// OnPut is called once per complete PUT request.
	OnPut(req *Request) ResponseCode
	// OnDisconnect is called for an explicit DISCONNECT request.
	OnDisconnect()
}

var connIDSeq atomic.Uint32

// DefaultMaxBodySize bounds the body a single PUT may accumulate across its
// packets.
const DefaultMaxBodySize = 1 << 20

// ServerSession serves OBEX requests arriving on one Conn until the peer
// goes away or Close is called.
type ServerSession struct {
	conn    Conn
	handler Handler
	log     zerolog.Logger

	connected bool
	connID    uint32
	put       *Request
	maxBody   int

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewServerSession binds handler to conn. Call Serve to start processing.
func NewServerSession(conn Conn, handler Handler, log zerolog.Logger) *ServerSession {
	return &ServerSession{
		conn:    conn,
		handler: handler,
		log:     log,
		maxBody: DefaultMaxBodySize,
		done:    make(chan struct{}),
	}
}

// SetMaxBodySize changes the PUT body limit. Values <= 0 restore the
// default. Call before Serve.
func (s *ServerSession) SetMaxBodySize(n int) {
	if n <= 0 {
		n = DefaultMaxBodySize
	}
	s.maxBody = n
}

// Done is closed once Serve has returned.
func (s *ServerSession) Done() <-chan struct{} { return s.done }

// Close shuts the underlying connection, which unblocks Serve.
func (s *ServerSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.conn.Close()
	})
	return err
}

// Serve runs the request loop. It returns nil when the peer disconnects or
// the session is closed locally, and the I/O or framing error otherwise.
func (s *ServerSession) Serve() error {
	defer close(s.done)
	defer s.Close()
	for {
		b, err := s.conn.ReadPacket()
		if err != nil {
			if s.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		req, err := DecodeRequest(b)
		if err != nil {
			// the stream can no longer be trusted to be in sync
			_ = s.respond(RespBadRequest, nil, nil)
			return err
		}
		if err := s.handle(req); err != nil {
			if s.closed.Load() {
				return nil
			}
			return err
		}
	}
}

func (s *ServerSession) handle(req Packet) error {
	switch req.Code {
	case OpConnect:
		return s.handleConnect(req)
	case OpDisconnect:
		s.put = nil
		s.connected = false
		s.handler.OnDisconnect()
		return s.respond(RespSuccess, nil, nil)
	case OpPut, OpPutFinal:
		return s.handlePut(req)
	case OpAbort:
		s.put = nil
		return s.respond(RespSuccess, nil, nil)
	default:
		s.log.Debug().Uint8("opcode", req.Code).Msg("unsupported obex request")
		return s.respond(RespNotImplemented, nil, nil)
	}
}

func (s *ServerSession) handleConnect(req Packet) error {
	if _, ok := ConnectMaxPacket(req.Prefix); !ok {
		return s.respond(RespBadRequest, nil, nil)
	}
	code, hdrs := s.handler.OnConnect(req.Headers)
	prefix := ConnectPrefix(uint16(s.conn.MaxPacketSize()))
	if code != RespSuccess {
		return s.respond(code, prefix, nil)
	}
	s.connected = true
	s.connID = connIDSeq.Add(1)
	hdrs = append(Headers{Uint32Header(HeaderConnectionID, s.connID)}, hdrs...)
	return s.respond(RespSuccess, prefix, hdrs)
}

func (s *ServerSession) handlePut(req Packet) error {
	if !s.connected {
		return s.respond(RespServiceUnavailable, nil, nil)
	}
	if id, ok := req.Headers.Uint32(HeaderConnectionID); ok && id != s.connID {
		s.put = nil
		return s.respond(RespServiceUnavailable, nil, nil)
	}
	if s.put == nil {
		s.put = &Request{}
	}
	for _, h := range req.Headers {
		if h.ID == HeaderBody || h.ID == HeaderEndOfBody {
			if len(s.put.Body)+len(h.Value) > s.maxBody {
				s.log.Warn().Int("limit", s.maxBody).Msg("put body too large; request dropped")
				s.put = nil
				return s.respond(RespEntityTooLarge, nil, nil)
			}
			s.put.Body = append(s.put.Body, h.Value...)
			continue
		}
		s.put.Headers = append(s.put.Headers, h)
	}
	if req.Code&FinalBit == 0 {
		return s.respond(RespContinue, nil, nil)
	}
	put := s.put
	s.put = nil
	return s.respond(s.handler.OnPut(put), nil, nil)
}

func (s *ServerSession) respond(code ResponseCode, prefix []byte, hdrs Headers) error {
	b, err := Packet{Code: byte(code), Prefix: prefix, Headers: hdrs}.Encode()
	if err != nil {
		return err
	}
	return s.conn.WritePacket(b)
}
