package proxy

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"relay.dev/relay/internal/config"
	"relay.dev/relay/internal/event"
	"relay.dev/relay/internal/relayerr"
)

type forwardResult struct {
	dir direction
	err error
}

// runSessionLoops owns a session's forwarding-loop lifecycle from the
// moment it reaches Play until it is finally removed. Each iteration of the
// outer loop is one "generation" of the two forwarding loops; a swap
// request ends a generation early and starts a fresh one bound to the new
// upstream. This is the session's only goroutine allowed to replace
// sess.client/sess.upstream, which is what lets forwardLoop and the swap
// procedure avoid holding sess.mu across any socket I/O.
func (p *Proxy) runSessionLoops(sess *Session) {
	for {
		client, upstream := sess.snapshotConns()
		ctx, cancel := context.WithCancel(context.Background())
		g, gctx := errgroup.WithContext(ctx)
		results := make(chan forwardResult, 2)

		g.Go(func() error {
			err := p.forwardLoop(gctx, sess, client, upstream, dirClientToServer)
			results <- forwardResult{dirClientToServer, err}
			return err
		})
		g.Go(func() error {
			err := p.forwardLoop(gctx, sess, upstream, client, dirServerToClient)
			results <- forwardResult{dirServerToClient, err}
			return err
		})
		// g's own error is only consulted for logging; this loop's control
		// flow is driven by the per-direction results below so it can react
		// to a swap request without waiting for both directions to exit.
		go func() { _ = g.Wait() }()

		var swapReq *swapRequest
		var natural bool
		var csExited, scExited bool

	wait:
		for {
			var swapCh chan swapRequest
			if swapReq == nil {
				swapCh = sess.swapRequests
			}

			select {
			case res := <-results:
				if swapReq == nil {
					// First loop to end without a pending swap means the
					// session is over: tear down the pair entirely.
					natural = true
					cancel()
					upstream.Close()
					client.Close()
					break wait
				}
				switch res.dir {
				case dirServerToClient:
					scExited = true
				case dirClientToServer:
					csExited = true
				}
				if csExited && scExited {
					// Both of this generation's loops have acknowledged
					// exit — closing upstream reliably unblocked the
					// server-to-client read, and readClientPacket's
					// deadline polling bounded how long the
					// client-to-server read could keep running after
					// cancel(). Only now is it safe to start a new
					// generation bound to the same client frameConn:
					// nothing is left reading through its decoder.
					break wait
				}
			case req := <-swapCh:
				swapReq = &req
				cancel()
				upstream.Close()
			}
		}

		if natural {
			break
		}

		ok, err := p.performSwap(sess, *swapReq)
		swapReq.result <- err
		if !ok {
			break
		}
		// loop again: sess.client/sess.upstream now point at the new pair
	}

	if p.removeSession(sess) {
		name, uid := sess.Name(), sess.UUID()
		p.bus.Fire(&event.Event{Kind: event.PlayerDisconnected, Session: sess, PlayerName: name, PlayerUUID: uid})
		zap.L().Info("session disconnected", zap.String("player", name))
	}
}

// ConnectToServer requests a server-swap to a named, configured upstream
// (spec §4.6). It dispatches PlayerConnectingServerEvent first; a
// cancelled event suppresses the swap and the session stays put. It blocks
// until the swap (or its failure) completes.
func (p *Proxy) ConnectToServer(sess *Session, target config.UpstreamServer) error {
	ev := &event.Event{
		Kind:           event.PlayerConnectingServer,
		TargetUpstream: &target,
		Session:        sess,
		PlayerName:     sess.Name(),
		PlayerUUID:     sess.UUID(),
	}
	p.bus.Fire(ev)
	if ev.Cancelled() {
		return nil
	}
	targetCopy := target
	return p.requestSwap(sess, swapRequest{targetServer: &targetCopy, targetAddr: target.HostPort})
}

// ConnectToIP requests a server-swap to a raw host:port outside the
// configured upstream set (spec §4.6). After this swap,
// Session.CurrentUpstream reports ok=false.
func (p *Proxy) ConnectToIP(sess *Session, hostPort string) error {
	ev := &event.Event{
		Kind:       event.PlayerConnectingIP,
		TargetAddr: hostPort,
		Session:    sess,
		PlayerName: sess.Name(),
		PlayerUUID: sess.UUID(),
	}
	p.bus.Fire(ev)
	if ev.Cancelled() {
		return nil
	}
	return p.requestSwap(sess, swapRequest{targetAddr: hostPort})
}

// Reconnect is the convenience entry point event listeners use: target is
// tried first as a configured upstream name, then as a raw host:port.
func (p *Proxy) Reconnect(sess *Session, target string) error {
	if u, ok := p.cfg.UpstreamByName(target); ok {
		return p.ConnectToServer(sess, u)
	}
	return p.ConnectToIP(sess, target)
}

func (p *Proxy) requestSwap(sess *Session, req swapRequest) error {
	req.result = make(chan error, 1)
	select {
	case sess.swapRequests <- req:
	default:
		return fmt.Errorf("proxy: a swap is already in progress for this session")
	}
	return <-req.result
}

// performSwap implements spec §4.6 steps 3-6, run with both of the
// session's prior forwarding loops already cancelled/exiting. It never
// touches the client socket.
func (p *Proxy) performSwap(sess *Session, req swapRequest) (bool, error) {
	rawConn, err := net.Dial("tcp", req.targetAddr)
	if err != nil {
		return false, relayerr.New(relayerr.ServerConnect, err)
	}
	newUpstream := newFrameConn(rawConn)

	protocolVersion := sess.ProtocolVersion()
	name, uid := sess.Name(), sess.UUID()
	client, _ := sess.snapshotConns()
	sess.mu.Lock()
	serverAddress, serverPort := sess.serverAddress, sess.serverPort
	sess.mu.Unlock()

	mode := p.cfg.ForwardingModeOf()
	suppressPF := req.targetServer == nil && p.cfg.NoPFForIPConnect

	hsPkt, err := buildHandshakePacket(protocolVersion, serverAddress, serverPort, nextStateLogin, mode, suppressPF, client.RemoteAddr())
	if err != nil {
		newUpstream.Close()
		return false, err
	}
	if err := newUpstream.WritePacket(hsPkt); err != nil {
		newUpstream.Close()
		return false, relayerr.New(relayerr.ServerConnect, err)
	}

	lsPkt, err := buildLoginStartPacket(name, uid)
	if err != nil {
		newUpstream.Close()
		return false, err
	}
	if err := newUpstream.WritePacket(lsPkt); err != nil {
		newUpstream.Close()
		return false, relayerr.New(relayerr.ServerConnect, err)
	}

	if err := driveLoginSubProtocol(client, newUpstream, replayEncryptionResponder(sess)); err != nil {
		newUpstream.Close()
		return false, err
	}

	old := sess.swapTo(newUpstream, req.targetServer)
	old.Close()

	zap.L().Info("session swapped upstream", zap.String("player", name), zap.String("target", req.targetAddr))
	return true, nil
}
