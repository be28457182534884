// Package eventreport decodes MAP event-report objects (x-bt/MAP-event-report)
// pushed by a message server to a notification service.
package eventreport

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// MIMEType is the OBEX Type header value of an event-report PUT.
const MIMEType = "x-bt/MAP-event-report"

// Event types defined by MAP 1.0 and 1.1.
const (
	NewMessage        = "NewMessage"
	DeliverySuccess   = "DeliverySuccess"
	SendingSuccess    = "SendingSuccess"
	DeliveryFailure   = "DeliveryFailure"
	SendingFailure    = "SendingFailure"
	MemoryFull        = "MemoryFull"
	MemoryAvailable   = "MemoryAvailable"
	MessageDeleted    = "MessageDeleted"
	MessageShift      = "MessageShift"
	ReadStatusChanged = "ReadStatusChanged"
)

var (
	ErrEmptyReport = errors.New("eventreport: no event element")
	ErrMissingType = errors.New("eventreport: event without type")
)

// Event is one <event> element.
type Event struct {
	Type       string `xml:"type,attr" json:"type"`
	Handle     string `xml:"handle,attr,omitempty" json:"handle,omitempty"`
	Folder     string `xml:"folder,attr,omitempty" json:"folder,omitempty"`
	OldFolder  string `xml:"old_folder,attr,omitempty" json:"old_folder,omitempty"`
	MsgType    string `xml:"msg_type,attr,omitempty" json:"msg_type,omitempty"`
	DateTime   string `xml:"datetime,attr,omitempty" json:"datetime,omitempty"`
	Subject    string `xml:"subject,attr,omitempty" json:"subject,omitempty"`
	SenderName string `xml:"sender_name,attr,omitempty" json:"sender_name,omitempty"`
	Priority   string `xml:"priority,attr,omitempty" json:"priority,omitempty"`
}

// Report is a decoded event report addressed to one MAS instance. Reports
// are treated as immutable once decoded.
type Report struct {
	InstanceID int     `json:"instance_id"`
	Version    string  `json:"version"`
	Events     []Event `json:"events"`
}

type document struct {
	XMLName xml.Name `xml:"MAP-event-report"`
	Version string   `xml:"version,attr"`
	Events  []Event  `xml:"event"`
}

// Parse decodes an event-report body addressed to instanceID.
func Parse(instanceID int, body []byte) (Report, error) {
	var doc document
	dec := xml.NewDecoder(bytes.NewReader(body))
	// some servers declare a non UTF-8 charset for plain ASCII content
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }
	if err := dec.Decode(&doc); err != nil {
		return Report{}, fmt.Errorf("eventreport: decode: %w", err)
	}
	if len(doc.Events) == 0 {
		return Report{}, ErrEmptyReport
	}
	for i, ev := range doc.Events {
		if ev.Type == "" {
			return Report{}, fmt.Errorf("%w (event %d)", ErrMissingType, i)
		}
	}
	if doc.Version == "" {
		doc.Version = "1.0"
	}
	return Report{InstanceID: instanceID, Version: doc.Version, Events: doc.Events}, nil
}

// Encode renders r as an event-report body. It is the inverse of Parse and
// is used by the sending side.
func Encode(r Report) ([]byte, error) {
	doc := document{Version: r.Version, Events: r.Events}
	if doc.Version == "" {
		doc.Version = "1.0"
	}
	b, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("eventreport: encode: %w", err)
	}
	return b, nil
}
