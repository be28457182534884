package mns

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"mnsd/internal/common/fsutil"
	"mnsd/internal/obex"
)

// Transport describes one transport kind: how to open its listening
// endpoint and how to adapt an accepted connection to OBEX packet I/O.
type Transport interface {
	Kind() Kind
	// Addr is the configured listening address, used for logs and status.
	Addr() string
	Listen() (net.Listener, error)
	Wrap(conn net.Conn) (obex.Conn, error)
}

// DefaultStreamAddr maps the fixed RFCOMM channel onto a local TCP port.
var DefaultStreamAddr = fmt.Sprintf("127.0.0.1:%d", 10000+RFCOMMChannel)

// DefaultPacketPath maps the fixed L2CAP PSM onto a SOCK_SEQPACKET socket.
var DefaultPacketPath = filepath.Join(os.TempDir(), fmt.Sprintf("mnsd-l2cap-%d.sock", L2CAPPSM))

// StreamTransport carries the reliable stream channel (RFCOMM) over TCP.
type StreamTransport struct {
	Address string
}

func (t StreamTransport) Kind() Kind   { return KindStream }
func (t StreamTransport) Addr() string { return t.Address }

func (t StreamTransport) Listen() (net.Listener, error) {
	return net.Listen("tcp", t.Address)
}

func (t StreamTransport) Wrap(conn net.Conn) (obex.Conn, error) {
	return obex.NewStreamConn(conn), nil
}

// PacketTransport carries the packet channel (L2CAP) over a unix
// SOCK_SEQPACKET socket, which preserves message boundaries.
type PacketTransport struct {
	Path string
	// MTU bounds OBEX packets in both directions; 0 means the OBEX maximum.
	MTU int
}

func (t PacketTransport) Kind() Kind   { return KindPacket }
func (t PacketTransport) Addr() string { return t.Path }

func (t PacketTransport) Listen() (net.Listener, error) {
	path, err := fsutil.ExpandHome(t.Path)
	if err != nil {
		return nil, err
	}
	if err := fsutil.RemoveStaleSocket("unixpacket", path); err != nil {
		return nil, err
	}
	return net.Listen("unixpacket", path)
}

func (t PacketTransport) Wrap(conn net.Conn) (obex.Conn, error) {
	if _, ok := conn.(*net.UnixConn); !ok {
		return nil, fmt.Errorf("packet transport needs a unix seqpacket connection, got %T", conn)
	}
	return obex.NewPacketConn(conn, t.MTU), nil
}
