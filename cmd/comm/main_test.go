package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/comm"
	"github.com/opd-ai/comm/address"
	"github.com/opd-ai/comm/messaging"
)

func TestParseCLIFlags(t *testing.T) {
	config, err := parseCLIFlags([]string{
		"-secret", "s3cret",
		"-listen", "127.0.0.1:7000",
		"-bootstrap", "udp://127.0.0.1:6667",
		"-bootstrap", "127.0.0.1:6668",
		"-poll-timeout", "50ms",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "s3cret", config.secret)
	assert.Equal(t, "127.0.0.1:7000", config.listen)
	assert.Equal(t, []string{"udp://127.0.0.1:6667", "127.0.0.1:6668"}, []string(config.bootstrap))
	assert.Equal(t, 50*time.Millisecond, config.pollTimeout)
	assert.Equal(t, "info", config.logLevel)

	_, err = parseCLIFlags([]string{"-unknown"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestValidateCLIConfig(t *testing.T) {
	valid := func() *CLIConfig {
		return &CLIConfig{secret: "s", listen: "0.0.0.0:0", pollTimeout: time.Second, logLevel: "info"}
	}

	tests := []struct {
		name        string
		mutate      func(*CLIConfig)
		errContains string
	}{
		{name: "valid client", mutate: func(*CLIConfig) {}},
		{name: "valid router", mutate: func(c *CLIConfig) { c.secret = ""; c.router = true }},
		{name: "no identity", mutate: func(c *CLIConfig) { c.secret = "" }, errContains: "required"},
		{name: "both identities", mutate: func(c *CLIConfig) { c.router = true }, errContains: "mutually exclusive"},
		{name: "empty listen", mutate: func(c *CLIConfig) { c.listen = "" }, errContains: "listen"},
		{name: "zero poll timeout", mutate: func(c *CLIConfig) { c.pollTimeout = 0 }, errContains: "poll timeout"},
		{name: "bad log level", mutate: func(c *CLIConfig) { c.logLevel = "loud" }, errContains: "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)
			err := validateCLIConfig(config)
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errContains)
		})
	}
}

func TestParseInputLine(t *testing.T) {
	target := address.ForString("target")

	recipient, text, err := parseInputLine(target.String() + " hello there ")
	require.NoError(t, err)
	assert.Equal(t, target, recipient)
	assert.Equal(t, "hello there", text)

	_, _, err = parseInputLine(target.String())
	assert.Error(t, err)

	_, _, err = parseInputLine("not-valid-hex hello")
	assert.ErrorIs(t, err, address.ErrInvalidAddressFormat)
}

func TestParseRouters(t *testing.T) {
	routers, err := parseRouters([]string{"udp://127.0.0.1:6667"})
	require.NoError(t, err)
	require.Len(t, routers, 1)
	assert.True(t, routers[0].IsRouter())

	_, err = parseRouters([]string{"tcp://127.0.0.1:6667"})
	assert.Error(t, err)
}

func TestReadCommands(t *testing.T) {
	self := address.ForString("cli")
	opts := comm.NewOptions()
	opts.PollTimeout = 20 * time.Millisecond

	client := comm.New(self, opts)
	received := make(chan *messaging.TextMessage, 4)
	require.NoError(t, client.OnTextMessage(func(msg *messaging.TextMessage) { received <- msg }))
	sink, err := client.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer client.Shutdown()

	input := strings.NewReader("\ngarbage\n" + self.String() + " hi me\n")
	var errOut bytes.Buffer
	readCommands(input, sink, &errOut)
	assert.Contains(t, errOut.String(), "invalid input")

	select {
	case msg := <-received:
		assert.Equal(t, "hi me", msg.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("message to self not delivered")
	}
}

func TestCreateOptions(t *testing.T) {
	opts := createOptions(&CLIConfig{pollTimeout: time.Second, stunServer: "stun.example.org:3478"})
	assert.Equal(t, time.Second, opts.PollTimeout)
	assert.Equal(t, "stun.example.org:3478", opts.Network.STUNServer)
}
