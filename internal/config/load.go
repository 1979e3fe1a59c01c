package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// rawConfig mirrors the recognized keys from spec §6.1 exactly; yaml.v2
// unmarshals into this first so Load can apply the forced_hosts ->
// server cross-reference walk the same way original_source's config.rs
// does it (a name->value mapping, not a tagged struct, since forced_hosts
// keys are server names, not fixed field names).
type rawConfig struct {
	Host             string            `yaml:"host"`
	Servers          map[string]string `yaml:"servers"`
	ForcedHosts      map[string]string `yaml:"forced_hosts"`
	DefaultServer    string            `yaml:"default_server"`
	PlayerForwarding string            `yaml:"player_forwarding"`
	NoPFForIPConnect *bool             `yaml:"no_pf_for_ip_connect"`
	TalkHost         string            `yaml:"talk_host"`
	TalkSecret       string            `yaml:"talk_secret"`
}

// Load parses and validates a config.yml at path, per spec §6.1.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates YAML bytes, per spec §6.1.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	forwarding := ForwardingHandshake
	if raw.PlayerForwarding == "disabled" {
		forwarding = ForwardingDisabled
	}

	noPF := true
	if raw.NoPFForIPConnect != nil {
		noPF = *raw.NoPFForIPConnect
	}

	upstreams := make([]UpstreamServer, 0, len(raw.Servers))
	for name, hostPort := range raw.Servers {
		upstreams = append(upstreams, UpstreamServer{
			Name:       name,
			HostPort:   hostPort,
			Forwarding: forwarding,
		})
	}
	for name, host := range raw.ForcedHosts {
		for i := range upstreams {
			if upstreams[i].Name == name {
				upstreams[i].ForcedHost = host
			}
		}
	}

	cfg := &Config{
		ListenAddr:       raw.Host,
		Upstreams:        upstreams,
		DefaultUpstream:  raw.DefaultServer,
		Forwarding:       forwarding,
		NoPFForIPConnect: noPF,
		TalkHost:         raw.TalkHost,
		TalkSecret:       raw.TalkSecret,
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
