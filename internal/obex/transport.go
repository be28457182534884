package obex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// Conn carries whole OBEX packets over an underlying connection.
type Conn interface {
	// ReadPacket blocks until one complete packet has been received.
	ReadPacket() ([]byte, error)
	// WritePacket sends one complete packet.
	WritePacket(p []byte) error
	// MaxPacketSize is the largest packet this transport can carry.
	MaxPacketSize() int
	RemoteAddr() net.Addr
	Close() error
}

// streamConn frames packets on a byte stream using the OBEX length field.
type streamConn struct {
	conn net.Conn
	r    *bufio.Reader
	wmu  sync.Mutex
}

// NewStreamConn adapts a reliable byte stream (RFCOMM-like) to packet I/O.
func NewStreamConn(c net.Conn) Conn {
	return &streamConn{conn: c, r: bufio.NewReaderSize(c, 8<<10)}
}

func (s *streamConn) ReadPacket() ([]byte, error) {
	var prefix [packetPrefixLen]byte
	if _, err := io.ReadFull(s.r, prefix[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(prefix[1:3]))
	if n < packetPrefixLen {
		return nil, fmt.Errorf("%w: length field %d", ErrPacketLength, n)
	}
	b := make([]byte, n)
	copy(b, prefix[:])
	if _, err := io.ReadFull(s.r, b[packetPrefixLen:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b, nil
}

func (s *streamConn) WritePacket(p []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := s.conn.Write(p)
	return err
}

func (s *streamConn) MaxPacketSize() int   { return MaxPacketSize }
func (s *streamConn) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }
func (s *streamConn) Close() error         { return s.conn.Close() }

// packetConn maps one OBEX packet onto one datagram of a connection-oriented
// packet transport (L2CAP-like, SOCK_SEQPACKET).
type packetConn struct {
	conn net.Conn
	mtu  int
	buf  []byte
	wmu  sync.Mutex
}

// NewPacketConn adapts a message-preserving connection to packet I/O. mtu
// bounds the packet size in both directions.
func NewPacketConn(c net.Conn, mtu int) Conn {
	if mtu <= 0 || mtu > MaxPacketSize {
		mtu = MaxPacketSize
	}
	if mtu < MinPacketSize {
		mtu = MinPacketSize
	}
	return &packetConn{conn: c, mtu: mtu, buf: make([]byte, mtu+1)}
}

func (p *packetConn) ReadPacket() ([]byte, error) {
	n, err := p.conn.Read(p.buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	if n > p.mtu {
		return nil, fmt.Errorf("%w: datagram larger than mtu %d", ErrPacketTooBig, p.mtu)
	}
	if n < packetPrefixLen {
		return nil, ErrShortPacket
	}
	if want := int(binary.BigEndian.Uint16(p.buf[1:3])); want != n {
		return nil, fmt.Errorf("%w: header says %d, datagram is %d", ErrPacketLength, want, n)
	}
	return append([]byte(nil), p.buf[:n]...), nil
}

func (p *packetConn) WritePacket(b []byte) error {
	if len(b) > p.mtu {
		return fmt.Errorf("%w: %d > mtu %d", ErrPacketTooBig, len(b), p.mtu)
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	_, err := p.conn.Write(b)
	return err
}

func (p *packetConn) MaxPacketSize() int   { return p.mtu }
func (p *packetConn) RemoteAddr() net.Addr { return p.conn.RemoteAddr() }
func (p *packetConn) Close() error         { return p.conn.Close() }
