package e2e

import (
	"net/http"
	"testing"
	"time"

	"mnsd/internal/eventreport"
	"mnsd/internal/mns"
)

func TestE2E_RegisterStartsAcceptorAndUnregisterStopsIt(t *testing.T) {
	srv, _ := newServer(t, nil)

	resp, _ := do(t, http.MethodGet, srv.URL+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz before register = %d", resp.StatusCode)
	}
	if st := status(t, srv); st.Acceptors[0].State != "idle" {
		t.Fatalf("acceptor state before register = %s", st.Acceptors[0].State)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/instances/0")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register = %d", resp.StatusCode)
	}
	addr := streamAddr(t, srv)
	resp, _ = do(t, http.MethodGet, srv.URL+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz after register = %d", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodDelete, srv.URL+"/instances/0")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unregister = %d", resp.StatusCode)
	}
	if st := status(t, srv); len(st.Instances) != 0 || st.Acceptors[0].State != "idle" {
		t.Fatalf("status after unregister = %+v", st)
	}
	if _, err := mns.DialNotifier(mns.KindStream, addr, 200*time.Millisecond); err == nil {
		t.Fatalf("endpoint still accepting after last unregister")
	}
}

func TestE2E_ReportReachesWebsocketOfAddressedInstance(t *testing.T) {
	pub := mns.NewMemoryPublisher()
	srv, _ := newServer(t, pub)

	s1 := openStream(t, srv, "1")
	s2 := openStream(t, srv, "2")
	waitFor(t, "both instances registered", func() bool { return len(status(t, srv).Instances) == 2 })

	n, err := mns.DialNotifier(mns.KindStream, streamAddr(t, srv), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer n.Close()

	if err := n.Send(eventreport.Report{InstanceID: 2, Events: []eventreport.Event{{Type: eventreport.NewMessage, Handle: "for-two"}}}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg := readFrame(t, s2); msg.InstanceID != 2 || msg.Events[0].Handle != "for-two" || msg.Version != "1.0" {
		t.Fatalf("instance 2 frame = %+v", msg)
	}

	if err := n.Send(eventreport.Report{InstanceID: 1, Events: []eventreport.Event{{Type: eventreport.MessageDeleted, Handle: "for-one", Folder: "TELECOM/MSG/DELETED"}}}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg := readFrame(t, s1); msg.InstanceID != 1 || msg.Events[0].Type != eventreport.MessageDeleted {
		t.Fatalf("instance 1 frame = %+v", msg)
	}

	if err := n.Send(eventreport.Report{InstanceID: 77, Events: []eventreport.Event{{Type: eventreport.MemoryFull}}}); err != nil {
		t.Fatalf("send to unknown instance: %v", err)
	}
	waitFor(t, "drop event", func() bool { return pub.Count(mns.EventReportDropped) == 1 })

	st := status(t, srv)
	if st.Acceptors[0].Session == nil || st.Acceptors[0].Session.Events != 3 {
		t.Fatalf("session status = %+v", st.Acceptors[0].Session)
	}
}

func TestE2E_ClosingLastStreamStopsAcceptor(t *testing.T) {
	srv, _ := newServer(t, nil)
	c := openStream(t, srv, "4")
	streamAddr(t, srv)
	_ = c.Close()
	waitFor(t, "acceptor stop", func() bool {
		st := status(t, srv)
		return len(st.Instances) == 0 && st.Acceptors[0].State == "idle"
	})
}
