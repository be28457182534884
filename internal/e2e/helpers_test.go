package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mnsd/internal/httpapi"
	"mnsd/internal/mns"
	"mnsd/pkg/types"
)

// newServer wires a real notification service on an ephemeral stream port
// behind the admin API.
func newServer(t *testing.T, pub mns.EventPublisher) (*httptest.Server, *mns.Service) {
	t.Helper()
	log := zerolog.Nop()
	svc := mns.New(mns.Config{
		Transports:  []mns.Transport{mns.StreamTransport{Address: "127.0.0.1:0"}},
		StopTimeout: 2 * time.Second,
		Logger:      &log,
		Publisher:   pub,
	})
	srv := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Close()
	})
	return srv, svc
}

func do(t *testing.T, method, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func status(t *testing.T, srv *httptest.Server) types.StatusResponse {
	t.Helper()
	resp, b := do(t, http.MethodGet, srv.URL+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d", resp.StatusCode)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

// streamAddr returns the bound address of the listening stream acceptor.
func streamAddr(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	var st types.StatusResponse
	waitFor(t, "listening stream acceptor", func() bool {
		st = status(t, srv)
		return len(st.Acceptors) == 1 && st.Acceptors[0].State == "listening"
	})
	return st.Acceptors[0].Addr
}

func openStream(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/instances/"+id+"/ws", nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readFrame(t *testing.T, c *websocket.Conn) types.EventMessage {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg types.EventMessage
	if err := c.ReadJSON(&msg); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
