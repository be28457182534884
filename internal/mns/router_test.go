package mns

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mnsd/internal/eventreport"
	"mnsd/internal/obex"
	"mnsd/internal/registry"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []int
}

func (d *recordingDispatcher) Dispatch(id int, _ eventreport.Report) {
	d.mu.Lock()
	d.calls = append(d.calls, id)
	d.mu.Unlock()
}

func TestRouterDispatch(t *testing.T) {
	pub := NewMemoryPublisher()
	reg := registry.New()
	r := newRouter(reg, zerolog.Nop(), pub)
	mb := NewMailbox(4)
	reg.Register(5, mb)

	r.Dispatch(5, newMessage(5, "a"))
	if got := receive(t, mb); got.Events[0].Handle != "a" {
		t.Fatalf("got %+v", got)
	}

	r.Dispatch(6, newMessage(6, "b"))
	if pub.Count(EventReportDropped) != 1 {
		t.Fatalf("unknown instance not reported")
	}
	if ev := pub.Events()[0]; ev.InstanceID != 6 {
		t.Fatalf("drop event = %+v", ev)
	}

	r.detach()
	r.Dispatch(5, newMessage(5, "c"))
	expectNothing(t, mb)
	if pub.Count(EventReportDropped) != 1 {
		t.Fatalf("detached drop should not publish")
	}
}

func TestMailboxDropsWhenFull(t *testing.T) {
	mb := NewMailbox(1)
	mb.Deliver(newMessage(1, "a"))
	mb.Deliver(newMessage(1, "b"))
	if mb.Dropped() != 1 {
		t.Fatalf("dropped = %d", mb.Dropped())
	}
	if got := receive(t, mb); got.Events[0].Handle != "a" {
		t.Fatalf("got %+v", got)
	}
	mb.Close()
	mb.Close()
	mb.Deliver(newMessage(1, "c"))
	if _, ok := <-mb.C(); ok {
		t.Fatalf("closed mailbox still delivers")
	}
}

func TestMailboxDefaultSize(t *testing.T) {
	if c := cap(NewMailbox(0).ch); c != defaultMailboxSize {
		t.Fatalf("cap = %d", c)
	}
}

// blockingWriter stalls every Write until release is closed.
type blockingWriter struct {
	release chan struct{}
	mu      sync.Mutex
	buf     bytes.Buffer
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.release
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *blockingWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func within(t *testing.T, what string, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s blocked for more than %s", what, d)
	}
}

func TestLogListenerSlowWriterDoesNotHoldRegistry(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	s := newTestService(t, nil, streamTransport())
	s.RegisterCallback(1, NewLogListener(1, zerolog.New(w)))

	within(t, "dispatch", time.Second, func() { s.router.Dispatch(1, newMessage(1, "slow-sink")) })
	within(t, "registry read", time.Second, func() { _ = s.reg.Len() })
	within(t, "register", time.Second, func() { s.RegisterCallback(2, NewMailbox(1)) })

	close(w.release)
	waitFor(t, "report logged", func() bool { return strings.Contains(w.String(), "slow-sink") })
}

func TestLogListenerDropsWhenBacklogFull(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	defer close(w.release)
	l := NewLogListener(1, zerolog.New(w))
	for i := 0; i < defaultMailboxSize+10; i++ {
		l.Deliver(newMessage(1, "h"))
	}
	// the drain goroutine may already hold the first report
	if d := l.Dropped(); d < 9 || d > 10 {
		t.Fatalf("dropped = %d", d)
	}
}

func newHandler(d Dispatcher) (*obexServer, *atomic.Int64) {
	var n atomic.Int64
	return &obexServer{dispatcher: d, log: zerolog.Nop(), events: &n}, &n
}

func putRequest(t *testing.T, typ string, params []byte, body []byte) *obex.Request {
	t.Helper()
	hdrs := obex.Headers{obex.TypeHeader(typ)}
	if params != nil {
		hdrs = append(hdrs, obex.BytesHeader(obex.HeaderAppParams, params))
	}
	return &obex.Request{Headers: hdrs, Body: body}
}

func encodeReport(t *testing.T, r eventreport.Report) []byte {
	t.Helper()
	b, err := eventreport.Encode(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func TestHandlerConnect(t *testing.T) {
	h, _ := newHandler(&recordingDispatcher{})
	code, hdrs := h.OnConnect(obex.Headers{obex.BytesHeader(obex.HeaderTarget, TargetUUID[:])})
	if code != obex.RespSuccess {
		t.Fatalf("code = %s", code)
	}
	if who, ok := hdrs.Get(obex.HeaderWho); !ok || string(who) != string(TargetUUID[:]) {
		t.Fatalf("who header missing")
	}
	if code, _ := h.OnConnect(nil); code != obex.RespNotAcceptable {
		t.Fatalf("connect without target = %s", code)
	}
}

func TestHandlerPut(t *testing.T) {
	cases := []struct {
		name     string
		typ      string
		params   []byte
		body     []byte
		want     obex.ResponseCode
		wantCall []int
	}{
		{
			name:     "routed",
			typ:      eventreport.MIMEType,
			params:   obex.AppParam(appParamMASInstanceID, []byte{3}),
			body:     encodeReport(t, newMessage(3, "h")),
			want:     obex.RespSuccess,
			wantCall: []int{3},
		},
		{
			name:     "no params defaults to zero",
			typ:      eventreport.MIMEType,
			body:     encodeReport(t, newMessage(0, "h")),
			want:     obex.RespSuccess,
			wantCall: []int{0},
		},
		{
			name: "wrong type",
			typ:  "x-bt/message",
			body: encodeReport(t, newMessage(0, "h")),
			want: obex.RespBadRequest,
		},
		{
			name:   "truncated params",
			typ:    eventreport.MIMEType,
			params: []byte{0x0F, 0x05, 0x01},
			body:   encodeReport(t, newMessage(0, "h")),
			want:   obex.RespBadRequest,
		},
		{
			name:   "bad body",
			typ:    eventreport.MIMEType,
			params: obex.AppParam(appParamMASInstanceID, []byte{1}),
			body:   []byte("<MAP-event-report version=\"1.0\"></MAP-event-report>"),
			want:   obex.RespNotAcceptable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &recordingDispatcher{}
			h, events := newHandler(d)
			got := h.OnPut(putRequest(t, tc.typ, tc.params, tc.body))
			if got != tc.want {
				t.Fatalf("code = %s, want %s", got, tc.want)
			}
			if len(d.calls) != len(tc.wantCall) {
				t.Fatalf("dispatch calls = %v, want %v", d.calls, tc.wantCall)
			}
			for i := range d.calls {
				if d.calls[i] != tc.wantCall[i] {
					t.Fatalf("dispatch calls = %v, want %v", d.calls, tc.wantCall)
				}
			}
			if events.Load() != int64(len(tc.wantCall)) {
				t.Fatalf("events = %d", events.Load())
			}
		})
	}
}
