package comm

import (
	"time"

	"github.com/opd-ai/comm/network"
)

// Options contains configuration options for creating a Client.
type Options struct {
	// PollTimeout bounds each receive of the client loop and therefore
	// the latency of sends and of Shutdown.
	PollTimeout time.Duration

	// Network configures networks created by Listen. Nil uses
	// network.DefaultConfig.
	Network *network.Config
}

// NewOptions creates a new default Options.
func NewOptions() *Options {
	return &Options{
		PollTimeout: 100 * time.Millisecond,
		Network:     network.DefaultConfig(),
	}
}
