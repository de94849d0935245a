package transport

import (
	"fmt"
	"time"

	"github.com/danmuck/wirelink/internal/wire"
)

// State is the connection lifecycle position. Closed is terminal and
// reachable from every other state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateHandshaking
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateHandshaking:
		return "Handshaking"
	case StateConnected:
		return "Connected"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// HandshakeReport describes the peer once per successful connection.
// Immutable after the stream factory produces it.
type HandshakeReport struct {
	RemoteHost    string
	AddressFamily string
	ProtocolLabel string
}

// Event is one entry on the transport's ordered event channel. The
// variants are ConnectedEvent, ReceivedEvent, InfoEvent, and ErrorEvent;
// ErrorEvent is terminal and delivered at most once, after which the
// channel is closed.
type Event interface {
	transportEvent()
}

// ConnectedEvent fires exactly once, before any ReceivedEvent, after the
// handshake completes.
type ConnectedEvent struct {
	Hello  *ServerHello
	Report HandshakeReport
}

// ReceivedEvent carries one decoded application message, delivered in
// wire arrival order.
type ReceivedEvent struct {
	Msg wire.Message
}

// ErrorEvent carries the single terminal error of the transport
// lifetime. EnqueuedCloseError here means the close was requested, not
// that anything failed.
type ErrorEvent struct {
	Err error
}

// InfoEvent carries a non-terminal observability note. Info events may
// interleave with receives but never follow the terminal error.
type InfoEvent struct {
	Info Info
}

func (ConnectedEvent) transportEvent() {}
func (ReceivedEvent) transportEvent()  {}
func (ErrorEvent) transportEvent()     {}
func (InfoEvent) transportEvent()      {}

// Direction labels which pump an info event concerns.
type Direction uint8

const (
	DirectionRead Direction = iota
	DirectionWrite
)

func (d Direction) String() string {
	if d == DirectionRead {
		return "read"
	}
	return "write"
}

// Info variants.
type Info interface {
	transportInfo()
}

// DurationWarningInfo brackets one slow read or write: IsBegin fires
// when the operation outlives its warn threshold, the matching end fires
// when it completes. Pairs of the same direction never interleave since
// only one operation per direction is in flight.
type DurationWarningInfo struct {
	Direction Direction
	IsBegin   bool
	Elapsed   time.Duration
}

// SessionStatusInfo reports a status indication packet from the peer.
type SessionStatusInfo struct {
	Code uint64
}

// DiagnosticInfo is a periodic counters snapshot.
type DiagnosticInfo struct {
	State           State
	SentPackets     uint64
	ReceivedPackets uint64
	QueueDepth      int
}

func (DurationWarningInfo) transportInfo() {}
func (SessionStatusInfo) transportInfo()   {}
func (DiagnosticInfo) transportInfo()      {}
