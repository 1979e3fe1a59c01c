// Package proxy implements the per-connection protocol driver, the player
// session object and its server-swap procedure, and the event dispatch
// wiring that ties them together. Configuration parsing, the framed codec,
// logging setup, and the command-line entry point are external
// collaborators this package only consumes.
package proxy

import (
	"context"
	"net"
	"sync"

	"go.uber.org/zap"
	"relay.dev/relay/internal/admin"
	"relay.dev/relay/internal/config"
	"relay.dev/relay/internal/event"
	"relay.dev/relay/internal/ratelimit"
	"relay.dev/relay/internal/relayerr"
)

// Proxy is the ProxyInstance of spec §3: config, the session set (compared
// by pointer identity, not uuid), and the ordered event bus. Sessions
// never hold a reference back to their owning Proxy; every session
// operation that needs one receives it as an explicit method receiver or
// parameter (spec §9).
type Proxy struct {
	cfg     *config.Config
	bus     *event.Bus
	limiter *ratelimit.Limiter

	mu       sync.Mutex
	sessions []*Session

	ln net.Listener
}

// New returns a Proxy ready to accept connections once Run is called.
// limiter may be nil to disable login rate limiting.
func New(cfg *config.Config, bus *event.Bus, limiter *ratelimit.Limiter) *Proxy {
	return &Proxy{cfg: cfg, bus: bus, limiter: limiter}
}

// AddListener registers l to observe every subsequent event. Per spec §5,
// registration is expected to happen before Run; the underlying bus
// tolerates concurrent registration regardless.
func (p *Proxy) AddListener(l event.Listener) {
	p.bus.AddListener(l)
}

// Run listens on cfg.ListenAddress() and accepts clients until ctx is
// cancelled or the listener errors. Each accepted socket gets its own
// login-driver goroutine; a login-driver error only affects that one
// connection (spec §4.7).
func (p *Proxy) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.cfg.ListenAddress())
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.ln = ln
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	zap.L().Info("proxy listening", zap.String("addr", p.cfg.ListenAddress()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go p.handleConn(conn)
	}
}

// Close stops the accept loop. Sessions already in flight are not torn
// down by Close; callers wanting a full drain should cancel the Run
// context and wait on their own session-count bookkeeping.
func (p *Proxy) Close() error {
	p.mu.Lock()
	ln := p.ln
	p.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}

func (p *Proxy) handleConn(raw net.Conn) {
	if p.limiter != nil {
		host, _, err := net.SplitHostPort(raw.RemoteAddr().String())
		if err != nil {
			host = raw.RemoteAddr().String()
		}
		if !p.limiter.Allow(host) {
			zap.L().Warn("rejected connection: login rate limit exceeded", zap.String("addr", host))
			_ = raw.Close()
			return
		}
	}

	client := newFrameConn(raw)
	if err := p.driveLogin(client); err != nil {
		addr := zap.String("addr", raw.RemoteAddr().String())
		if relayerr.Is(err, relayerr.HandshakePacket) || relayerr.Is(err, relayerr.LoginPacket) || relayerr.Is(err, relayerr.ProtocolError) {
			zap.L().Error("session ended during login", addr, zap.Error(err))
		} else {
			zap.L().Info("session ended during login", addr, zap.Error(err))
		}
		_ = client.Close()
	}
}

func (p *Proxy) insertSession(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = append(p.sessions, s)
}

// removeSession removes s from the set, reporting true only on the call
// that actually removed it (spec invariant 4: a session is removed exactly
// once).
func (p *Proxy) removeSession(s *Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, x := range p.sessions {
		if x == s {
			p.sessions = append(p.sessions[:i], p.sessions[i+1:]...)
			return true
		}
	}
	return false
}

// SessionCount reports the number of sessions currently in the set.
func (p *Proxy) SessionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Sessions implements admin.SessionLister.
func (p *Proxy) Sessions() []admin.SessionInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]admin.SessionInfo, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s.info())
	}
	return out
}
