// Package admin exposes an introspection HTTP endpoint over the proxy's own
// liveness and session table. It listens on whatever address it is given;
// nothing in the package restricts that to loopback. It is explicitly not a
// backend health check: it knows nothing about upstream server health,
// only about this process and the sessions it is currently forwarding.
package admin

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// SessionInfo is the JSON shape returned by GET /sessions, one row per
// connected player.
type SessionInfo struct {
	Name            string `json:"name"`
	UUID            string `json:"uuid"`
	Upstream        string `json:"upstream"`
	ProtocolVersion int32  `json:"protocol_version"`
}

// SessionLister is satisfied by the proxy's session registry. Kept as an
// interface, rather than importing the proxy package directly, so admin has
// no dependency on proxy internals beyond this one read.
type SessionLister interface {
	Sessions() []SessionInfo
}

// Server is a minimal fasthttp-backed introspection server.
type Server struct {
	addr     string
	lister   SessionLister
	fasthttp *fasthttp.Server
}

// New returns a Server bound to addr (expected to be a loopback address,
// e.g. "127.0.0.1:9090") that reports on lister.
func New(addr string, lister SessionLister) *Server {
	s := &Server{addr: addr, lister: lister}
	s.fasthttp = &fasthttp.Server{
		Handler: s.handle,
		Name:    "relay-admin",
	}
	return s
}

// ListenAndServe blocks serving requests until the listener errors or is
// closed via Shutdown.
func (s *Server) ListenAndServe() error {
	zap.L().Info("admin endpoint listening", zap.String("addr", s.addr))
	return s.fasthttp.ListenAndServe(s.addr)
}

// Shutdown gracefully stops the server, letting in-flight requests finish.
func (s *Server) Shutdown() error {
	return s.fasthttp.Shutdown()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		s.handleHealthz(ctx)
	case "/sessions":
		s.handleSessions(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) handleHealthz(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString("ok")
}

func (s *Server) handleSessions(ctx *fasthttp.RequestCtx) {
	sessions := s.lister.Sessions()
	if sessions == nil {
		sessions = []SessionInfo{}
	}

	body, err := json.Marshal(sessions)
	if err != nil {
		zap.L().Error("failed to marshal session list", zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)
}
