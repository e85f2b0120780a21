package network

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/opd-ai/comm/routing"
	"github.com/opd-ai/comm/transport"
)

// Config holds the tunables of a Network.
type Config struct {
	// AnnounceInterval is how often the node re-announces itself to every
	// router and prunes stale peers.
	AnnounceInterval time.Duration

	// PeerTTL is how long a learned peer endpoint stays usable without
	// traffic from it.
	PeerTTL time.Duration

	// PeerCapacity bounds the number of learned peers.
	PeerCapacity int

	// Relay forwards data addressed to other nodes. Nodes with the null
	// address always relay.
	Relay bool

	// STUNServer, when set, is queried once at startup to discover the
	// node's public endpoint.
	STUNServer string

	// STUNTimeout bounds the STUN exchange.
	STUNTimeout time.Duration

	// Clock drives maintenance. Nil means the wall clock.
	Clock clock.Clock
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		AnnounceInterval: 30 * time.Second,
		PeerTTL:          15 * time.Minute,
		PeerCapacity:     routing.DefaultPeerCapacity,
		STUNTimeout:      transport.DefaultSTUNTimeout,
		Clock:            clock.New(),
	}
}

// withDefaults returns a copy of cfg with unset fields filled in.
func (cfg *Config) withDefaults() Config {
	defaults := DefaultConfig()
	if cfg == nil {
		return *defaults
	}

	result := *cfg
	if result.AnnounceInterval <= 0 {
		result.AnnounceInterval = defaults.AnnounceInterval
	}
	if result.PeerTTL <= 0 {
		result.PeerTTL = defaults.PeerTTL
	}
	if result.PeerCapacity <= 0 {
		result.PeerCapacity = defaults.PeerCapacity
	}
	if result.STUNTimeout <= 0 {
		result.STUNTimeout = defaults.STUNTimeout
	}
	if result.Clock == nil {
		result.Clock = defaults.Clock
	}
	return result
}
