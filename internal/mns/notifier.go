package mns

import (
	"fmt"
	"net"
	"time"

	"mnsd/internal/eventreport"
	"mnsd/internal/obex"
)

// Notifier plays the message-server side of a notification connection: it
// dials an MNS endpoint, connects to the MNS target and pushes event reports.
// It backs `mnsd send` and the end-to-end tests.
type Notifier struct {
	client *obex.Client
}

// DialNotifier connects to addr over the given transport kind.
func DialNotifier(kind Kind, addr string, timeout time.Duration) (*Notifier, error) {
	var (
		conn net.Conn
		err  error
		pc   obex.Conn
	)
	switch kind {
	case KindStream:
		conn, err = net.DialTimeout("tcp", addr, timeout)
		if err == nil {
			pc = obex.NewStreamConn(conn)
		}
	case KindPacket:
		conn, err = net.DialTimeout("unixpacket", addr, timeout)
		if err == nil {
			pc = obex.NewPacketConn(conn, 0)
		}
	default:
		return nil, fmt.Errorf("unknown transport kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", kind, addr, err)
	}
	c := obex.NewClient(pc)
	if _, err := c.Connect(TargetUUID[:]); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &Notifier{client: c}, nil
}

// Send pushes r to the instance r.InstanceID.
func (n *Notifier) Send(r eventreport.Report) error {
	if r.InstanceID < 0 || r.InstanceID > 0xFF {
		return fmt.Errorf("instance id %d out of range", r.InstanceID)
	}
	body, err := eventreport.Encode(r)
	if err != nil {
		return err
	}
	hdrs := obex.Headers{
		obex.TypeHeader(eventreport.MIMEType),
		obex.BytesHeader(obex.HeaderAppParams, obex.AppParam(appParamMASInstanceID, []byte{byte(r.InstanceID)})),
	}
	return n.client.Put(hdrs, body)
}

// Close disconnects and closes the connection.
func (n *Notifier) Close() error {
	derr := n.client.Disconnect()
	if err := n.client.Close(); err != nil {
		return err
	}
	return derr
}
