package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mnsd/internal/config"
	"mnsd/internal/eventreport"
	"mnsd/internal/mns"
	"mnsd/pkg/types"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--short"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Fatalf("output = %q", out.String())
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if _, err := newLogger(&buf, "loud", ""); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := newLogger(&buf, "info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestResolveConfigPrecedence(t *testing.T) {
	p := filepath.Join(t.TempDir(), "mnsd.yaml")
	if err := os.WriteFile(p, []byte("addr: \":9000\"\nstream_addr: \"127.0.0.1:1\"\ninstances: [4]\nmailbox_size: 8\nmax_report_bytes: 2048\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fl := config.Config{Addr: ":8080", StreamAddr: "127.0.0.1:2", MailboxSize: 64, Transports: []string{"stream"}}

	cfg, err := resolveConfig(p, fl, map[string]bool{"stream_addr": true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("file should override flag default, addr=%q", cfg.Addr)
	}
	if cfg.StreamAddr != "127.0.0.1:2" {
		t.Fatalf("explicit flag should override file, stream_addr=%q", cfg.StreamAddr)
	}
	if len(cfg.Instances) != 1 || cfg.Instances[0] != 4 || cfg.MailboxSize != 8 || cfg.MaxReportBytes != 2048 {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
	if len(cfg.Transports) != 1 || cfg.Transports[0] != "stream" {
		t.Fatalf("transports = %v", cfg.Transports)
	}

	if _, err := resolveConfig("", config.Config{Transports: []string{"bogus"}}, nil); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := resolveConfig(filepath.Join(t.TempDir(), "missing.toml"), fl, nil); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestTransportsFromConfig(t *testing.T) {
	ts := transports(config.Config{Transports: []string{"packet", "stream"}, StreamAddr: "127.0.0.1:7", PacketPath: "/tmp/x.sock"})
	if len(ts) != 2 || ts[0].Kind() != mns.KindPacket || ts[1].Addr() != "127.0.0.1:7" {
		t.Fatalf("unexpected transports %+v", ts)
	}
}

func TestSendReportFromFlagsAndFile(t *testing.T) {
	o := &sendOptions{instance: 2, event: eventreport.Event{Type: eventreport.NewMessage, Handle: "h1"}}
	rep, err := o.report()
	if err != nil || rep.InstanceID != 2 || rep.Events[0].Handle != "h1" {
		t.Fatalf("report = %+v, %v", rep, err)
	}

	body, err := eventreport.Encode(eventreport.Report{Events: []eventreport.Event{{Type: eventreport.MemoryFull}}})
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), "report.xml")
	if err := os.WriteFile(p, body, 0o644); err != nil {
		t.Fatal(err)
	}
	o.file = p
	rep, err = o.report()
	if err != nil || rep.InstanceID != 2 || rep.Events[0].Type != eventreport.MemoryFull {
		t.Fatalf("report = %+v, %v", rep, err)
	}

	o.instance = 300
	if _, err := o.report(); err == nil {
		t.Fatalf("expected range error")
	}
}

// syncBuffer lets the test read logs written from service goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeRoutesReportsToConfiguredInstance(t *testing.T) {
	var logs syncBuffer
	log, err := newLogger(&logs, "info", "json")
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		Transports:    []string{"stream"},
		StreamAddr:    "127.0.0.1:0",
		StopTimeoutMS: 2000,
		Instances:     []int{5},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, log, ln) }()

	base := "http://" + ln.Addr().String()
	var st types.StatusResponse
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(base + "/status")
		if err == nil {
			_ = json.NewDecoder(resp.Body).Decode(&st)
			resp.Body.Close()
			if len(st.Acceptors) == 1 && st.Acceptors[0].State == "listening" {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("service never became ready: %+v (%v)", st, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	n, err := mns.DialNotifier(mns.KindStream, st.Acceptors[0].Addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	rep := eventreport.Report{InstanceID: 5, Events: []eventreport.Event{{Type: eventreport.NewMessage, Handle: "e2e-handle"}}}
	if err := n.Send(rep); err != nil {
		t.Fatalf("send: %v", err)
	}
	_ = n.Close()

	deadline = time.Now().Add(3 * time.Second)
	for !strings.Contains(logs.String(), "e2e-handle") {
		if time.Now().After(deadline) {
			t.Fatalf("report not logged by instance listener; logs:\n%s", logs.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}
