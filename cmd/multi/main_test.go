package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/comm"
	"github.com/opd-ai/comm/routing"
	"github.com/opd-ai/comm/transport"
)

func TestEndpoints(t *testing.T) {
	assert.Equal(t, []string{"127.0.0.1:8000", "127.0.0.1:8001", "127.0.0.1:8002"}, endpoints("127.0.0.1", 8000, 8003))
	assert.Equal(t, []string{"[::1]:9000"}, endpoints("::1", 9000, 9001))
	assert.Empty(t, endpoints("127.0.0.1", 8000, 8000))
}

func TestValidateCLIConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  CLIConfig
		wantErr bool
	}{
		{name: "valid", config: CLIConfig{start: 8000, end: 8100, logLevel: "info"}},
		{name: "port zero", config: CLIConfig{start: 0, end: 10, logLevel: "info"}, wantErr: true},
		{name: "empty range", config: CLIConfig{start: 8000, end: 8000, logLevel: "info"}, wantErr: true},
		{name: "range too high", config: CLIConfig{start: 8000, end: 70000, logLevel: "info"}, wantErr: true},
		{name: "negative rampup", config: CLIConfig{start: 1, end: 2, rampup: -time.Second, logLevel: "info"}, wantErr: true},
		{name: "bad level", config: CLIConfig{start: 1, end: 2, logLevel: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCLIConfig(&tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseCLIFlags(t *testing.T) {
	config, err := parseCLIFlags([]string{"-host", "127.0.0.1", "-start", "9000", "-end", "9010", "-rampup", "10ms"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", config.host)
	assert.Equal(t, uint(9000), config.start)
	assert.Equal(t, uint(9010), config.end)
	assert.Equal(t, 10*time.Millisecond, config.rampup)
}

func TestStartNodes(t *testing.T) {
	router, err := comm.StartRouter("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer router.Shutdown()

	routerNode, err := routing.NewRouterNode(router.LocalEndpoint().String())
	require.NoError(t, err)

	hosts := []string{"127.0.0.1:0", "127.0.0.1:0", "127.0.0.1:0"}
	clients, err := startNodes(context.Background(), hosts, []*routing.Node{routerNode}, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, clients, 3)

	seen := make(map[string]bool)
	for _, c := range clients {
		require.NotNil(t, c)
		assert.Equal(t, comm.StateRunning, c.State())
		seen[c.Self().String()] = true
	}
	assert.Len(t, seen, 3, "every node gets its own address")

	require.NoError(t, shutdownAll(clients))
	for _, c := range clients {
		assert.Equal(t, comm.StateStopped, c.State())
	}
}

func TestStartNodesBindFailure(t *testing.T) {
	taken, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	_, err = startNodes(context.Background(), []string{"127.0.0.1:0", taken.LocalAddr().String()}, nil, 0)
	assert.ErrorIs(t, err, transport.ErrAddressInUse)
}

func TestStartNodesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := startNodes(ctx, []string{"127.0.0.1:0", "127.0.0.1:0"}, nil, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
