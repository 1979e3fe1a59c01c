// Package event implements the single tagged-union event bus described in
// spec §4.5 and §9: "model events as a tagged variant whose payload fields
// are directly mutable by listeners; do not reach for
// dynamic-dispatch-per-event-type registration."
package event

import (
	"net"

	"github.com/google/uuid"
	"relay.dev/relay/internal/codec"
)

// Kind tags which fields of an Event are meaningful and whether it is
// cancellable, per the table in spec §4.5.
type Kind int

const (
	RecvServerPacket Kind = iota
	SendClientPacket
	RecvClientPacket
	SendServerPacket
	PlayerConnectingServer
	PlayerConnectingIP
	PlayerConnected
	PlayerDisconnected
	StatusRequest
)

func (k Kind) String() string {
	switch k {
	case RecvServerPacket:
		return "RecvServerPacket"
	case SendClientPacket:
		return "SendClientPacket"
	case RecvClientPacket:
		return "RecvClientPacket"
	case SendServerPacket:
		return "SendServerPacket"
	case PlayerConnectingServer:
		return "PlayerConnectingServer"
	case PlayerConnectingIP:
		return "PlayerConnectingIP"
	case PlayerConnected:
		return "PlayerConnected"
	case PlayerDisconnected:
		return "PlayerDisconnected"
	case StatusRequest:
		return "StatusRequest"
	default:
		return "Unknown"
	}
}

func (k Kind) cancellable() bool {
	switch k {
	case SendClientPacket, SendServerPacket, PlayerConnectingServer, PlayerConnectingIP, StatusRequest:
		return true
	default:
		return false
	}
}

// Event is the single mutable struct dispatched to every listener in
// registration order; only the fields relevant to Kind are meaningful.
// Session holds the concrete *proxy.Session that fired the event, typed as
// any to avoid an import cycle between this package and proxy — listener
// code that needs it type-asserts to *proxy.Session.
type Event struct {
	Kind Kind

	// Packet events (Recv*/Send*).
	Packet codec.Packet

	// PlayerConnectingServerEvent.
	TargetUpstream any // *config.UpstreamServer, kept untyped for the same reason as Session

	// PlayerConnectingIPEvent.
	TargetAddr string

	// StatusRequestEvent.
	StatusJSON    string
	ClientAddr    net.Addr
	ServerAddress string
	ServerPort    uint16

	// Identity of the session this event concerns, where applicable.
	Session         any
	PlayerName      string
	PlayerUUID      uuid.UUID
	ProtocolVersion uint16

	cancelled bool
}

// Cancellable reports whether Cancel has any effect for this event's Kind.
func (e *Event) Cancellable() bool { return e.Kind.cancellable() }

// Cancel marks the event cancelled. A no-op on non-cancellable kinds.
func (e *Event) Cancel() {
	if e.Kind.cancellable() {
		e.cancelled = true
	}
}

// Cancelled reports whether a listener cancelled this event.
func (e *Event) Cancelled() bool { return e.cancelled }
