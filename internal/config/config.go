// Package config implements the ProxyConfig external collaborator described
// in spec §4.2 and §6.1: it turns a config.yml into the immutable value the
// core consumes, and nothing more — it does not know about sessions,
// packets, or the event bus.
package config

import (
	"fmt"

	"golang.org/x/text/cases"
)

// ForwardingMode is the tagged variant from spec §3. Only Handshake and
// Disabled are implemented; see spec §9 / DESIGN.md for why the optional
// PluginResponse/Velocity/Bungeecord extensions are left out.
type ForwardingMode int

const (
	// ForwardingDisabled does not append the client's address to the
	// outbound handshake.
	ForwardingDisabled ForwardingMode = iota
	// ForwardingHandshake appends the client's real address to the
	// handshake packet (spec §4.3).
	ForwardingHandshake
)

func (m ForwardingMode) String() string {
	if m == ForwardingHandshake {
		return "handshake"
	}
	return "disabled"
}

// UpstreamServer is immutable after load, identified by Name (unique within
// a Config).
type UpstreamServer struct {
	Name        string
	HostPort    string
	ForcedHost  string // empty if this server has no forced virtual host
	Forwarding  ForwardingMode
}

var hostFold = cases.Fold()

// foldHost canonicalizes a virtual-host string for case-insensitive
// matching against forced_hosts, the way DNS/SNI hostnames are normally
// compared.
func foldHost(h string) string {
	return hostFold.String(h)
}

// Config is the concrete ProxyConfig: the parsed, validated form of
// config.yml (spec §6.1).
type Config struct {
	ListenAddr      string
	Upstreams       []UpstreamServer
	DefaultUpstream string // name, may be empty
	Forwarding      ForwardingMode
	// NoPFForIPConnect: see spec §9 Open Questions — if true and the
	// reconnect target is a raw IP, suppress the address-appended
	// handshake regardless of Forwarding.
	NoPFForIPConnect bool
	// TalkHost / TalkSecret are parsed and retained but never consulted by
	// any proxy component (spec §6.1: "reserved — ignored by the core").
	TalkHost   string
	TalkSecret string

	byName       map[string]UpstreamServer
	byForcedHost map[string]UpstreamServer
}

// index builds the lookup maps used by DefaultUpstream/UpstreamByForcedHost.
// Called once after parsing/validation succeeds.
func (c *Config) index() {
	c.byName = make(map[string]UpstreamServer, len(c.Upstreams))
	c.byForcedHost = make(map[string]UpstreamServer, len(c.Upstreams))
	for _, u := range c.Upstreams {
		c.byName[u.Name] = u
		if u.ForcedHost != "" {
			c.byForcedHost[foldHost(u.ForcedHost)] = u
		}
	}
}

// ListenAddress implements the ProxyConfig interface (spec §4.2).
func (c *Config) ListenAddress() string { return c.ListenAddr }

// ForwardingModeOf implements the ProxyConfig interface.
func (c *Config) ForwardingModeOf() ForwardingMode { return c.Forwarding }

// DefaultUpstreamServer implements the ProxyConfig interface.
func (c *Config) DefaultUpstreamServer() (UpstreamServer, bool) {
	if c.DefaultUpstream == "" {
		return UpstreamServer{}, false
	}
	u, ok := c.byName[c.DefaultUpstream]
	return u, ok
}

// UpstreamByForcedHost implements the ProxyConfig interface.
func (c *Config) UpstreamByForcedHost(virtualHost string) (UpstreamServer, bool) {
	u, ok := c.byForcedHost[foldHost(virtualHost)]
	return u, ok
}

// UpstreamByName supports server-swap's connect_to_server (spec §4.6).
func (c *Config) UpstreamByName(name string) (UpstreamServer, bool) {
	u, ok := c.byName[name]
	return u, ok
}

// Validate checks the invariants spec §3 requires of a ProxyConfig: unique
// upstream names, a resolvable default_server reference, and a non-empty
// listen address. Called once after Load.
func Validate(c *Config) error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: host is required")
	}
	seen := make(map[string]bool, len(c.Upstreams))
	for _, u := range c.Upstreams {
		if u.Name == "" {
			return fmt.Errorf("config: server with empty name")
		}
		if seen[u.Name] {
			return fmt.Errorf("config: duplicate server name %q", u.Name)
		}
		seen[u.Name] = true
		if u.HostPort == "" {
			return fmt.Errorf("config: server %q has no address", u.Name)
		}
	}
	if c.DefaultUpstream != "" && !seen[c.DefaultUpstream] {
		return fmt.Errorf("config: default_server %q is not a known server", c.DefaultUpstream)
	}
	c.index()
	return nil
}
