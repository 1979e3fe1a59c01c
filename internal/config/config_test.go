package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
host: "0.0.0.0:25565"
servers:
  a: "127.0.0.1:1"
  b: "127.0.0.1:2"
forced_hosts:
  b: "play.example"
default_server: a
player_forwarding: disabled
`

func TestParseSample(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:25565", cfg.ListenAddress())
	assert.Equal(t, ForwardingDisabled, cfg.Forwarding)

	def, ok := cfg.DefaultUpstreamServer()
	require.True(t, ok)
	assert.Equal(t, "a", def.Name)

	b, ok := cfg.UpstreamByForcedHost("play.example")
	require.True(t, ok)
	assert.Equal(t, "b", b.Name)

	// case-insensitive forced host matching
	b2, ok := cfg.UpstreamByForcedHost("PLAY.EXAMPLE")
	require.True(t, ok)
	assert.Equal(t, "b", b2.Name)

	_, ok = cfg.UpstreamByForcedHost("other")
	assert.False(t, ok)
}

func TestParseMissingHostFails(t *testing.T) {
	_, err := Parse([]byte(`servers: {}`))
	assert.Error(t, err)
}

func TestParseForcedHostForUnknownServerIsIgnored(t *testing.T) {
	cfg, err := Parse([]byte(`
host: "0.0.0.0:25565"
servers:
  a: "127.0.0.1:1"
forced_hosts:
  ghost: "no-such-server"
`))
	require.NoError(t, err)
	_, ok := cfg.UpstreamByForcedHost("no-such-server")
	assert.False(t, ok)
}

func TestValidateRejectsUnknownDefaultServer(t *testing.T) {
	_, err := Parse([]byte(`
host: "0.0.0.0:25565"
servers:
  a: "127.0.0.1:1"
default_server: nope
`))
	assert.Error(t, err)
}

func TestDefaultForwardingIsHandshake(t *testing.T) {
	cfg, err := Parse([]byte(`
host: "0.0.0.0:25565"
servers: {}
`))
	require.NoError(t, err)
	assert.Equal(t, ForwardingHandshake, cfg.Forwarding)
}
