package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/wirelink/internal/transport"
)

type fileConfig struct {
	GameMagic           string `toml:"game_magic"`
	ProtocolHash        string `toml:"protocol_hash"`
	ConnectTimeout      string `toml:"connect_timeout"`
	HeaderReadTimeout   string `toml:"header_read_timeout"`
	ReadTimeout         string `toml:"read_timeout"`
	WriteTimeout        string `toml:"write_timeout"`
	KeepaliveInterval   string `toml:"keepalive_interval"`
	EventBuffer         int    `toml:"event_buffer"`
	DisablePayloadLimit bool   `toml:"disable_payload_limit"`
}

// loadProbeConfig reads a TOML probe config, keeping defaults for keys
// the file does not define.
func loadProbeConfig(path string) (transport.Config, error) {
	cfg := transport.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return transport.Config{}, fmt.Errorf("load probe config: %w", err)
	}

	if meta.IsDefined("game_magic") {
		cfg.GameMagic = strings.TrimSpace(raw.GameMagic)
	}

	if meta.IsDefined("protocol_hash") {
		hash, err := hex.DecodeString(strings.TrimSpace(raw.ProtocolHash))
		if err != nil {
			return transport.Config{}, fmt.Errorf("parse protocol_hash: %w", err)
		}
		cfg.FullProtocolHash = hash
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"header_read_timeout", raw.HeaderReadTimeout, &cfg.HeaderReadTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"keepalive_interval", raw.KeepaliveInterval, &cfg.WriteKeepaliveInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return transport.Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("event_buffer") {
		cfg.EventBuffer = raw.EventBuffer
	}

	if meta.IsDefined("disable_payload_limit") {
		cfg.DisablePayloadLimit = raw.DisablePayloadLimit
	}

	return cfg, nil
}
