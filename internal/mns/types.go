package mns

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies a transport kind. At most one session is tracked per kind.
type Kind string

const (
	KindStream Kind = "stream"
	KindPacket Kind = "packet"
)

// State is the lifecycle state of an Acceptor.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateStopping  State = "stopping"
	StateStopped   State = "stopped"
)

// Listening identity. These are fixed so that remote message servers can
// locate the service.
var (
	// ServiceUUID is the MAP MNS service class.
	ServiceUUID = uuid.MustParse("00001133-0000-1000-8000-00805F9B34FB")
	// TargetUUID is the OBEX Target a message server must connect with.
	TargetUUID = uuid.MustParse("bb582b41-420c-11db-b0de-0800200c9a66")
)

const (
	RFCOMMChannel = 22
	L2CAPPSM      = 0x1027

	// application parameter tag carrying the MAS instance id
	appParamMASInstanceID byte = 0x0F
)

// SessionInfo is a read-only view of a tracked session.
type SessionInfo struct {
	ID     string
	Kind   Kind
	Remote string
	Opened time.Time
	Events int64
}

// AcceptorInfo is a read-only view of an acceptor.
type AcceptorInfo struct {
	Kind     Kind
	State    State
	Addr     string
	Accepted int
	Session  *SessionInfo
}
