package mns

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mnsd/internal/eventreport"
	"mnsd/internal/obex"
)

const testStopTimeout = 2 * time.Second

func newTestService(t *testing.T, pub EventPublisher, transports ...Transport) *Service {
	t.Helper()
	log := zerolog.Nop()
	s := New(Config{Transports: transports, StopTimeout: testStopTimeout, Logger: &log, Publisher: pub})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func streamTransport() Transport { return StreamTransport{Address: "127.0.0.1:0"} }

// packetTransport returns a packet transport on a short socket path; the
// temp dir of t.TempDir can exceed the unix socket path limit.
func packetTransport(t *testing.T) Transport {
	t.Helper()
	d, err := os.MkdirTemp("", "mns")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(d) })
	return PacketTransport{Path: filepath.Join(d, "l2cap.sock")}
}

func boundAddr(t *testing.T, s *Service, k Kind) string {
	t.Helper()
	a := s.acceptor(k)
	if a == nil {
		t.Fatalf("no %s acceptor", k)
	}
	addr := a.Addr()
	if addr == nil {
		t.Fatalf("%s acceptor not listening", k)
	}
	return addr.String()
}

func dial(t *testing.T, s *Service, k Kind) *Notifier {
	t.Helper()
	n, err := DialNotifier(k, boundAddr(t, s, k), time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", k, err)
	}
	t.Cleanup(func() { _ = n.client.Close() })
	return n
}

func newMessage(instanceID int, handle string) eventreport.Report {
	return eventreport.Report{
		InstanceID: instanceID,
		Events:     []eventreport.Event{{Type: eventreport.NewMessage, Handle: handle, Folder: "TELECOM/MSG/INBOX", MsgType: "SMS_GSM"}},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, mb *Mailbox) eventreport.Report {
	t.Helper()
	select {
	case r := <-mb.C():
		return r
	case <-time.After(3 * time.Second):
		t.Fatalf("no report delivered")
		return eventreport.Report{}
	}
}

func expectNothing(t *testing.T, mb *Mailbox) {
	t.Helper()
	select {
	case r := <-mb.C():
		t.Fatalf("unexpected report: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

// fakeTransport lets tests script listen and accept behavior.
type fakeTransport struct {
	kind      Kind
	listenErr error
	acceptErr error
	wrapErr   error
	stuck     bool
	inner     Transport

	listens atomic.Int32
	mu      sync.Mutex
	last    *fakeListener
}

func (f *fakeTransport) Kind() Kind   { return f.kind }
func (f *fakeTransport) Addr() string { return "fake" }

func (f *fakeTransport) Listen() (net.Listener, error) {
	f.listens.Add(1)
	if f.listenErr != nil {
		return nil, f.listenErr
	}
	if f.inner != nil {
		return f.inner.Listen()
	}
	l := &fakeListener{acceptErr: f.acceptErr, stuck: f.stuck, closed: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.last = l
	f.mu.Unlock()
	return l, nil
}

func (f *fakeTransport) Wrap(c net.Conn) (obex.Conn, error) {
	if f.wrapErr != nil {
		return nil, f.wrapErr
	}
	return f.inner.Wrap(c)
}

// fakeListener fails Accept with acceptErr, or blocks until closed. With
// stuck set, Close does not unblock Accept until release is closed.
type fakeListener struct {
	acceptErr error
	stuck     bool
	closeOnce sync.Once
	closed    chan struct{}
	release   chan struct{}
}

func (l *fakeListener) Accept() (net.Conn, error) {
	if l.acceptErr != nil {
		return nil, l.acceptErr
	}
	if l.stuck {
		<-l.release
	} else {
		<-l.closed
	}
	return nil, net.ErrClosed
}

func (l *fakeListener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *fakeListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

var errBoom = errors.New("boom")
