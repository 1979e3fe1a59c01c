package proxy

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"relay.dev/relay/internal/codec"
	"relay.dev/relay/internal/config"
	"relay.dev/relay/internal/event"
	"relay.dev/relay/internal/relayerr"
)

// loginReadDeadline bounds how long a client may sit inside the login
// driver (spec §5's recommended 30s) before it's disconnected for
// inactivity. It is set once a connection is accepted and cleared as soon
// as the session reaches Play, where the forwarding loops take over their
// own, shorter-lived deadlines (see readClientPacket).
const loginReadDeadline = 30 * time.Second

// driveLogin is the per-accepted-client state machine of spec §4.3: it
// owns the connection from the moment its handshake is read until it
// either closes or reaches Play, at which point control passes to
// runSessionLoops. Every error it returns is confined to this one
// connection; the accept loop only logs it.
func (p *Proxy) driveLogin(client *frameConn) error {
	if err := client.SetReadDeadline(time.Now().Add(loginReadDeadline)); err != nil {
		return err
	}

	hsPkt, err := client.ReadPacket()
	if err != nil {
		return err
	}
	if hsPkt.ID != packetHandshake {
		return relayerr.New(relayerr.HandshakePacket, fmt.Errorf("expected handshake packet 0x00, got %#x", hsPkt.ID))
	}

	r := bytes.NewReader(hsPkt.Payload)
	protocolVersion, err := codec.ReadVarU16(r)
	if err != nil {
		return relayerr.New(relayerr.HandshakePacket, err)
	}
	serverAddress, err := codec.ReadString(r)
	if err != nil {
		return relayerr.New(relayerr.HandshakePacket, err)
	}
	serverPort, err := codec.ReadUnsignedShort(r)
	if err != nil {
		return relayerr.New(relayerr.HandshakePacket, err)
	}
	nextState, err := codec.ReadVarU8(r)
	if err != nil {
		return relayerr.New(relayerr.HandshakePacket, err)
	}

	if nextState != nextStateStatus && nextState != nextStateLogin {
		return relayerr.New(relayerr.HandshakePacket, fmt.Errorf("unsupported next_state %d", nextState))
	}

	upstreamServer, ok := p.resolveUpstream(serverAddress)
	if !ok {
		return relayerr.New(relayerr.ServerConnect, fmt.Errorf("no upstream for virtual host %q and no default_server", serverAddress))
	}

	rawUpstream, err := net.Dial("tcp", upstreamServer.HostPort)
	if err != nil {
		return relayerr.New(relayerr.ServerConnect, err)
	}
	upstream := newFrameConn(rawUpstream)

	outHS, err := buildHandshakePacket(protocolVersion, serverAddress, serverPort, nextState, upstreamServer.Forwarding, false, client.RemoteAddr())
	if err != nil {
		upstream.Close()
		return err
	}
	if err := upstream.WritePacket(outHS); err != nil {
		upstream.Close()
		return relayerr.New(relayerr.ServerConnect, err)
	}

	switch nextState {
	case nextStateStatus:
		defer upstream.Close()
		return p.driveStatus(client, upstream, client.RemoteAddr(), serverAddress, serverPort)
	default: // nextStateLogin
		return p.driveLoginState(client, upstream, protocolVersion, serverAddress, serverPort, upstreamServer)
	}
}

// resolveUpstream implements the resolution policy of spec §4.2: forced
// host first, then the configured default, else refuse the connection.
func (p *Proxy) resolveUpstream(virtualHost string) (config.UpstreamServer, bool) {
	if u, ok := p.cfg.UpstreamByForcedHost(virtualHost); ok {
		return u, true
	}
	return p.cfg.DefaultUpstreamServer()
}

// driveStatus implements spec §4.3 state Status: a pass-through loop with
// one mutation hook on the status response's JSON payload.
func (p *Proxy) driveStatus(client, upstream *frameConn, clientAddr net.Addr, serverAddress string, serverPort uint16) error {
	for {
		req, err := client.ReadPacket()
		if err != nil {
			return err
		}
		if err := upstream.WritePacket(req); err != nil {
			return err
		}
		resp, err := upstream.ReadPacket()
		if err != nil {
			return err
		}

		if req.ID == packetStatusRequest {
			statusJSON, err := codec.ReadString(bytes.NewReader(resp.Payload))
			if err != nil {
				return relayerr.New(relayerr.ProtocolError, err)
			}

			ev := &event.Event{
				Kind:          event.StatusRequest,
				StatusJSON:    statusJSON,
				ClientAddr:    clientAddr,
				ServerAddress: serverAddress,
				ServerPort:    serverPort,
			}
			p.bus.Fire(ev)
			if ev.Cancelled() {
				_ = client.Close()
				_ = upstream.Close()
				return nil
			}

			buf := new(bytes.Buffer)
			if err := codec.WriteString(buf, ev.StatusJSON); err != nil {
				return err
			}
			resp = codec.Packet{ID: packetStatusResponse, Payload: buf.Bytes()}
		}

		if err := client.WritePacket(resp); err != nil {
			return err
		}
	}
}

// driveLoginState implements spec §4.3 state Login: reads LoginStart,
// creates the Session, dispatches PlayerConnectingServerEvent, then drives
// the shared login sub-protocol to Play.
func (p *Proxy) driveLoginState(client, upstream *frameConn, protocolVersion uint16, serverAddress string, serverPort uint16, upstreamServer config.UpstreamServer) error {
	lsPkt, err := client.ReadPacket()
	if err != nil {
		upstream.Close()
		return err
	}
	if lsPkt.ID != packetLoginStart {
		upstream.Close()
		return relayerr.New(relayerr.LoginPacket, fmt.Errorf("expected login start packet 0x00, got %#x", lsPkt.ID))
	}

	r := bytes.NewReader(lsPkt.Payload)
	name, err := codec.ReadString(r)
	if err != nil {
		upstream.Close()
		return relayerr.New(relayerr.LoginPacket, err)
	}
	uid, err := codec.ReadUUID(r)
	if err != nil {
		upstream.Close()
		return relayerr.New(relayerr.LoginPacket, err)
	}

	upstreamCopy := upstreamServer
	sess := newSession(client, upstream, protocolVersion, serverAddress, serverPort, name, uid, &upstreamCopy)

	connecting := &event.Event{
		Kind:            event.PlayerConnectingServer,
		TargetUpstream:  &upstreamCopy,
		Session:         sess,
		PlayerName:      name,
		PlayerUUID:      uid,
		ProtocolVersion: protocolVersion,
	}
	p.bus.Fire(connecting)
	if connecting.Cancelled() {
		_ = client.Close()
		_ = upstream.Close()
		return nil
	}

	p.insertSession(sess)

	if err := upstream.WritePacket(lsPkt); err != nil {
		p.removeSession(sess)
		upstream.Close()
		return err
	}

	if err := driveLoginSubProtocol(client, upstream, liveEncryptionResponder(client, sess)); err != nil {
		p.removeSession(sess)
		upstream.Close()
		return err
	}

	if err := client.SetReadDeadline(time.Time{}); err != nil {
		p.removeSession(sess)
		upstream.Close()
		return err
	}

	p.bus.Fire(&event.Event{
		Kind:            event.PlayerConnected,
		Session:         sess,
		PlayerName:      name,
		PlayerUUID:      uid,
		ProtocolVersion: protocolVersion,
	})

	zap.L().Info("session entered play",
		zap.String("addr", client.RemoteAddr().String()),
		zap.String("player", name),
		zap.String("upstream", upstreamCopy.Name))

	p.runSessionLoops(sess)
	return nil
}
