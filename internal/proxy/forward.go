package proxy

import (
	"context"
	"errors"
	"net"
	"time"

	"relay.dev/relay/internal/codec"
	"relay.dev/relay/internal/event"
)

// direction tags which way a forwardLoop copies packets, and therefore
// which pair of event kinds it dispatches (spec §4.4).
type direction int

const (
	dirClientToServer direction = iota
	dirServerToClient
)

// clientReadPollInterval bounds how long the client-to-server direction can
// sit inside a single ReadPacket call. The server-to-client direction's src
// (the current upstream) is reliably unblocked by closing the socket on
// swap, but the client socket is never closed mid-session, so that path
// alone cannot wake a pending client read. Polling with a short deadline
// gives runSessionLoops a real, boundedly-delayed acknowledgment that this
// generation's client reader has exited before it starts the next one.
const clientReadPollInterval = 250 * time.Millisecond

// readClientPacket reads one packet from the client side, rechecking ctx
// between each short read-deadline timeout instead of blocking indefinitely.
func readClientPacket(ctx context.Context, src *frameConn) (codec.Packet, error) {
	for {
		if ctx.Err() != nil {
			return codec.Packet{}, ctx.Err()
		}
		if err := src.SetReadDeadline(time.Now().Add(clientReadPollInterval)); err != nil {
			return codec.Packet{}, err
		}
		pkt, err := src.ReadPacket()
		if err == nil {
			_ = src.SetReadDeadline(time.Time{})
			return pkt, nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			continue
		}
		return codec.Packet{}, err
	}
}

// forwardLoop repeatedly reads one packet from src, dispatches the Recv*
// and Send* events for its direction, and (unless the Send* event was
// cancelled) writes the resulting packet to dst. It returns the first read
// or write error. For the server-to-client direction that error is normally
// the one produced by the old upstream having been closed out from under
// it (spec §4.4/§5 rely on closing a socket, not a context alone, to
// unblock a pending read); for the client-to-server direction it is
// normally ctx.Err(), surfaced by readClientPacket's deadline polling since
// the client socket itself is never closed to force an unblock.
func (p *Proxy) forwardLoop(ctx context.Context, sess *Session, src, dst *frameConn, dir direction) error {
	recvKind, sendKind := event.RecvClientPacket, event.SendServerPacket
	if dir == dirServerToClient {
		recvKind, sendKind = event.RecvServerPacket, event.SendClientPacket
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var pkt codec.Packet
		var err error
		if dir == dirClientToServer {
			pkt, err = readClientPacket(ctx, src)
		} else {
			pkt, err = src.ReadPacket()
		}
		if err != nil {
			return err
		}

		recvEv := &event.Event{Kind: recvKind, Packet: pkt, Session: sess}
		p.bus.Fire(recvEv)

		sendEv := &event.Event{Kind: sendKind, Packet: recvEv.Packet, Session: sess}
		p.bus.Fire(sendEv)
		if sendEv.Cancelled() {
			continue
		}

		if err := dst.WritePacket(sendEv.Packet); err != nil {
			return err
		}
	}
}
