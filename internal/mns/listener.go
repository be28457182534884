package mns

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"mnsd/internal/eventreport"
)

const defaultMailboxSize = 64

// Mailbox is a Listener that queues reports for a consumer running in its
// own goroutine. Deliver never blocks: when the queue is full the report is
// dropped and counted.
type Mailbox struct {
	mu      sync.Mutex
	ch      chan eventreport.Report
	closed  bool
	dropped atomic.Int64
}

// NewMailbox creates a mailbox holding up to size undelivered reports.
func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = defaultMailboxSize
	}
	return &Mailbox{ch: make(chan eventreport.Report, size)}
}

func (m *Mailbox) Deliver(r eventreport.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.ch <- r:
	default:
		m.dropped.Add(1)
		reportsDropped.WithLabelValues("mailbox_full").Inc()
	}
}

// C returns the receive side of the queue. It is closed by Close.
func (m *Mailbox) C() <-chan eventreport.Report { return m.ch }

// Dropped reports how many reports were discarded because the queue was full.
func (m *Mailbox) Dropped() int64 { return m.dropped.Load() }

// Close stops accepting reports and closes C. Unregister the mailbox first.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}

// LogListener writes every report it receives to a logger. It is what the
// daemon registers for instances configured without another consumer.
// Deliver only queues the report; a drain goroutine, started on demand and
// gone once the queue is empty, does the writing. A full queue drops.
type LogListener struct {
	log zerolog.Logger

	mu       sync.Mutex
	queue    []eventreport.Report
	draining bool
	dropped  atomic.Int64
}

func NewLogListener(instanceID int, log zerolog.Logger) *LogListener {
	return &LogListener{log: log.With().Int("instance", instanceID).Logger()}
}

func (l *LogListener) Deliver(r eventreport.Report) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) >= defaultMailboxSize {
		l.dropped.Add(1)
		reportsDropped.WithLabelValues("log_backlog").Inc()
		return
	}
	l.queue = append(l.queue, r)
	if !l.draining {
		l.draining = true
		go l.drain()
	}
}

// Dropped reports how many reports were discarded because the writer fell
// behind.
func (l *LogListener) Dropped() int64 { return l.dropped.Load() }

func (l *LogListener) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.draining = false
			l.mu.Unlock()
			return
		}
		r := l.queue[0]
		l.queue[0] = eventreport.Report{}
		l.queue = l.queue[1:]
		l.mu.Unlock()
		l.write(r)
	}
}

func (l *LogListener) write(r eventreport.Report) {
	for _, ev := range r.Events {
		l.log.Info().
			Str("type", ev.Type).
			Str("handle", ev.Handle).
			Str("folder", ev.Folder).
			Str("msg_type", ev.MsgType).
			Msg("event report")
	}
}
