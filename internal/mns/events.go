package mns

// Event is a service lifecycle event: name, transport kind and optional
// fields. InstanceID is -1 when the event is not about one instance.
type Event struct {
	Name       string
	Kind       Kind
	InstanceID int
	Fields     map[string]any
}

// Lifecycle event names.
const (
	EventAcceptorStart        = "acceptor_start"
	EventAcceptorListenFailed = "acceptor_listen_failed"
	EventAcceptorFailed       = "acceptor_failed"
	EventAcceptorStop         = "acceptor_stop"
	EventSessionOpen          = "session_open"
	EventSessionReplaced      = "session_replaced"
	EventSessionClosed        = "session_closed"
	EventWireFailed           = "wire_failed"
	EventReportDropped        = "event_dropped"
)

// EventPublisher receives events from the service. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
