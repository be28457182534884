package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid instance id
	Error string `json:"error" example:"invalid instance id"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// SessionStatus describes the session tracked by an acceptor.
type SessionStatus struct {
	// Session identifier (UUID).
	// example: 3f1c2d4e-8a7b-4c1d-9e2f-0a1b2c3d4e5f
	ID string `json:"id" example:"3f1c2d4e-8a7b-4c1d-9e2f-0a1b2c3d4e5f"`
	// Remote peer address.
	// example: 127.0.0.1:53122
	Remote string `json:"remote" example:"127.0.0.1:53122"`
	// Time the session was accepted (unix seconds).
	// example: 1700000000
	OpenedUnix int64 `json:"opened_unix" example:"1700000000"`
	// Event reports received on this session.
	// example: 4
	Events int64 `json:"events" example:"4"`
}

// AcceptorStatus summarizes one transport kind for /status.
type AcceptorStatus struct {
	// Transport kind (stream or packet).
	// example: stream
	Kind string `json:"kind" example:"stream"`
	// Lifecycle state: idle, listening, stopping, stopped.
	// example: listening
	State string `json:"state" example:"listening"`
	// Listening address (bound address while listening).
	// example: 127.0.0.1:10022
	Addr string `json:"addr" example:"127.0.0.1:10022"`
	// Connections accepted by the current acceptor.
	// example: 1
	Accepted int `json:"accepted" example:"1"`
	// Tracked session, if any.
	Session *SessionStatus `json:"session,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Registered MAS instance ids, ascending.
	// example: [0,1]
	Instances []int `json:"instances" example:"0,1"`
	// One entry per configured transport kind.
	Acceptors []AcceptorStatus `json:"acceptors"`
	// MNS service class UUID advertised to message servers.
	// example: 00001133-0000-1000-8000-00805f9b34fb
	ServiceUUID string `json:"service_uuid" example:"00001133-0000-1000-8000-00805f9b34fb"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// RegisterResponse is returned by POST /instances/{id}.
type RegisterResponse struct {
	// Registered instance id.
	// example: 0
	InstanceID int `json:"instance_id" example:"0"`
	// Registered ids after the call.
	// example: [0]
	Instances []int `json:"instances" example:"0"`
}

// EventMessage is one JSON frame on GET /instances/{id}/ws.
type EventMessage struct {
	// Instance the report was addressed to.
	// example: 0
	InstanceID int `json:"instance_id" example:"0"`
	// Event-report version.
	// example: 1.0
	Version string `json:"version" example:"1.0"`
	// Events carried by the report.
	Events []Event `json:"events"`
}

// Event mirrors one event of a MAP event report.
type Event struct {
	// example: NewMessage
	Type string `json:"type" example:"NewMessage"`
	// example: 20000100001
	Handle string `json:"handle,omitempty" example:"20000100001"`
	// example: TELECOM/MSG/INBOX
	Folder    string `json:"folder,omitempty" example:"TELECOM/MSG/INBOX"`
	OldFolder string `json:"old_folder,omitempty"`
	// example: SMS_GSM
	MsgType    string `json:"msg_type,omitempty" example:"SMS_GSM"`
	DateTime   string `json:"datetime,omitempty"`
	Subject    string `json:"subject,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
	Priority   string `json:"priority,omitempty"`
}
