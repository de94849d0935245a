package transport

import "time"

// Config carries the transport timing knobs. Zero values are filled in
// by WithDefaults; a Config is copied into the transport at construction
// and never mutated afterward.
type Config struct {
	ConnectTimeout    time.Duration
	HeaderReadTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration

	WarnAfterReadDuration  time.Duration
	WarnAfterWriteDuration time.Duration

	WriteKeepaliveInterval time.Duration

	// GameMagic must match the 4-byte magic in the server preamble.
	GameMagic string

	// ClientVersion and FullProtocolHash identify this client in its
	// ClientHello.
	ClientVersion    string
	FullProtocolHash []byte

	// DisablePayloadLimit turns off the max-packet-size check on decode.
	// Only test and debug paths set this.
	DisablePayloadLimit bool

	// EventBuffer sizes the event channel.
	EventBuffer int
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:         10 * time.Second,
		HeaderReadTimeout:      5 * time.Second,
		ReadTimeout:            30 * time.Second,
		WriteTimeout:           30 * time.Second,
		WarnAfterReadDuration:  5 * time.Second,
		WarnAfterWriteDuration: 5 * time.Second,
		WriteKeepaliveInterval: 10 * time.Second,
		EventBuffer:            64,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HeaderReadTimeout <= 0 {
		c.HeaderReadTimeout = def.HeaderReadTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.WarnAfterReadDuration <= 0 {
		c.WarnAfterReadDuration = def.WarnAfterReadDuration
	}
	if c.WarnAfterWriteDuration <= 0 {
		c.WarnAfterWriteDuration = def.WarnAfterWriteDuration
	}
	if c.WriteKeepaliveInterval <= 0 {
		c.WriteKeepaliveInterval = def.WriteKeepaliveInterval
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	return c
}
