package proxy

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"relay.dev/relay/internal/admin"
	"relay.dev/relay/internal/config"
)

// Session is the central mutable entity from spec §3: it exclusively owns
// the client and (current) upstream framed connections and the identity and
// captured login material that survives a server-swap. It deliberately
// holds no back-reference to the owning Proxy — per spec §9's
// "captured-reference graph" note, every operation that needs the proxy
// (removal, event dispatch, reconnect) takes it as an explicit parameter,
// which sidesteps the deadlock-prone shared-mutex-of-self pattern the
// original source worked around with a deadlock-detecting mutex.
type Session struct {
	mu sync.Mutex

	client   *frameConn
	upstream *frameConn

	protocolVersion uint16
	playerName      string
	playerUUID      uuid.UUID
	currentUpstream *config.UpstreamServer // nil after a raw-IP reconnect

	serverAddress string
	serverPort    uint16

	// sharedSecret/verifyToken are captured during the initial login's
	// EncryptionRequest/Response exchange and replayed verbatim on swap
	// (spec §4.6 step 4c).
	sharedSecret []byte
	verifyToken  []byte

	// swapRequests carries at most one in-flight reconnect request; the
	// session's forwarding supervisor (runSessionLoops) is its only reader.
	swapRequests chan swapRequest

	// generation counts completed server-swaps. Read without sess.mu via
	// Generation(), the way connectedPlayer.ping is read as an
	// atomic.Duration rather than under the identity mutex.
	generation atomic.Uint32
}

func newSession(client, upstream *frameConn, protocolVersion uint16, serverAddress string, serverPort uint16, name string, uid uuid.UUID, upstreamServer *config.UpstreamServer) *Session {
	return &Session{
		client:          client,
		upstream:        upstream,
		protocolVersion: protocolVersion,
		playerName:      name,
		playerUUID:      uid,
		currentUpstream: upstreamServer,
		serverAddress:   serverAddress,
		serverPort:      serverPort,
		swapRequests:    make(chan swapRequest, 1),
	}
}

func (s *Session) snapshotConns() (*frameConn, *frameConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client, s.upstream
}

// Name is the player's login name, fixed for the life of the session.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerName
}

// UUID is the player's login uuid, fixed for the life of the session.
func (s *Session) UUID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerUUID
}

// ProtocolVersion is the version declared in the client's handshake.
func (s *Session) ProtocolVersion() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion
}

// CurrentUpstream reports the configured upstream this session is presently
// attached to. ok is false after a raw-IP reconnect, where there is no
// config.UpstreamServer to report.
func (s *Session) CurrentUpstream() (config.UpstreamServer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentUpstream == nil {
		return config.UpstreamServer{}, false
	}
	return *s.currentUpstream, true
}

func (s *Session) info() admin.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	upstreamName := ""
	if s.currentUpstream != nil {
		upstreamName = s.currentUpstream.Name
	}
	return admin.SessionInfo{
		Name:            s.playerName,
		UUID:            s.playerUUID.String(),
		Upstream:        upstreamName,
		ProtocolVersion: int32(s.protocolVersion),
	}
}

func (s *Session) capturedEncryption() (secret, token []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sharedSecret, s.verifyToken
}

func (s *Session) captureEncryption(secret, token []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sharedSecret = secret
	s.verifyToken = token
}

func (s *Session) swapTo(newUpstream *frameConn, meta *config.UpstreamServer) (old *frameConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.upstream
	s.upstream = newUpstream
	s.currentUpstream = meta
	s.generation.Inc()
	return old
}

// Generation counts how many server-swaps this session has completed.
func (s *Session) Generation() uint32 { return s.generation.Load() }

// swapRequest is enqueued by ConnectToServer/ConnectToIP and consumed by
// the session's forwarding supervisor, which is the only goroutine allowed
// to mutate the session's connection pair.
type swapRequest struct {
	targetServer *config.UpstreamServer // nil for a raw-IP reconnect
	targetAddr   string                 // host:port to dial; always set
	result       chan error
}
