package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mnsd/internal/eventreport"
	"mnsd/internal/mns"
)

type sendOptions struct {
	kind     string
	addr     string
	instance int
	file     string
	timeout  time.Duration
	event    eventreport.Event
}

func sendCmd(g *globalOptions) *cobra.Command {
	o := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Push one event report to an MNS endpoint, acting as a message server",
		Example: `  mnsd send --instance 0 --handle 20000100001
  mnsd send --kind packet --addr /tmp/mnsd-l2cap-4135.sock --file report.xml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(os.Stderr, g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			rep, err := o.report()
			if err != nil {
				return err
			}
			if o.addr == "" {
				o.addr = defaultSendAddr(mns.Kind(o.kind))
			}
			n, err := mns.DialNotifier(mns.Kind(o.kind), o.addr, o.timeout)
			if err != nil {
				return err
			}
			defer n.Close()
			if err := n.Send(rep); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			log.Info().Str("kind", o.kind).Str("addr", o.addr).Int("instance", rep.InstanceID).Int("events", len(rep.Events)).Msg("event report sent")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.kind, "kind", string(mns.KindStream), "Transport kind: stream|packet")
	f.StringVar(&o.addr, "addr", "", "Endpoint address or socket path (defaults to the kind's default)")
	f.IntVar(&o.instance, "instance", 0, "MAS instance id (0-255)")
	f.StringVar(&o.file, "file", "", "Send the MAP-event-report XML in this file instead of a single event")
	f.DurationVar(&o.timeout, "timeout", 3*time.Second, "Dial timeout")
	f.StringVar(&o.event.Type, "type", eventreport.NewMessage, "Event type")
	f.StringVar(&o.event.Handle, "handle", "", "Message handle")
	f.StringVar(&o.event.Folder, "folder", "TELECOM/MSG/INBOX", "Folder")
	f.StringVar(&o.event.MsgType, "msg-type", "SMS_GSM", "Message type")
	f.StringVar(&o.event.Subject, "subject", "", "Subject")
	f.StringVar(&o.event.SenderName, "sender", "", "Sender name")
	return cmd
}

// report builds the report to send from --file or the single-event flags.
func (o *sendOptions) report() (eventreport.Report, error) {
	if o.instance < 0 || o.instance > 0xFF {
		return eventreport.Report{}, fmt.Errorf("instance id %d out of range 0-255", o.instance)
	}
	if o.file != "" {
		b, err := os.ReadFile(o.file)
		if err != nil {
			return eventreport.Report{}, err
		}
		return eventreport.Parse(o.instance, b)
	}
	if o.event.Type == "" {
		return eventreport.Report{}, eventreport.ErrMissingType
	}
	return eventreport.Report{InstanceID: o.instance, Version: "1.0", Events: []eventreport.Event{o.event}}, nil
}

func defaultSendAddr(k mns.Kind) string {
	if k == mns.KindPacket {
		return mns.DefaultPacketPath
	}
	return mns.DefaultStreamAddr
}
