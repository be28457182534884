package httpapi

import "time"

// mailboxSize bounds the queue between the router and a websocket stream.
// Zero uses the mailbox default.
var mailboxSize int

// SetMailboxSize configures the per-stream report queue.
func SetMailboxSize(n int) {
	if n < 0 {
		n = 0
	}
	mailboxSize = n
}

// wsWriteTimeout bounds a single websocket frame write.
var wsWriteTimeout = 5 * time.Second

// SetWSWriteTimeout sets the websocket write deadline (<=0 restores the default).
func SetWSWriteTimeout(d time.Duration) {
	if d <= 0 {
		d = 5 * time.Second
	}
	wsWriteTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server. Allowed origins
// also gate websocket upgrades from other origins.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
