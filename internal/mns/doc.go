// Package mns implements the notification-receiving side of a MAP client:
// a service that listens for inbound connections from a message server,
// serves event-report pushes over one tracked session per transport kind,
// and routes each report to the client instance registered for it.
//
// Files by concern:
//
//   - service.go: Service facade (RegisterCallback/UnregisterCallback/Close).
//   - config.go: Config and package defaults; New applies defaults.
//   - acceptor.go: generic per-transport accept loop and its state machine.
//   - transport.go: transport kinds (stream over TCP, packet over SOCK_SEQPACKET).
//   - session.go: wiring of an accepted connection into an OBEX server session.
//   - server.go: OBEX handler that decodes event-report PUTs.
//   - router.go: dispatch of decoded reports into the callback registry.
//   - listener.go: Listener helpers (Mailbox, LogListener).
//   - events.go, eventpub_memory.go: lifecycle event publishing.
//   - metrics.go, status.go: Prometheus metrics and status snapshots.
//   - notifier.go: the message-server side, used by `mnsd send` and tests.
//
// Acceptors run only while at least one instance is registered. Failures
// never cross the facade; they are logged and observable through lifecycle
// events, metrics and Status.
package mns
