package comm

import (
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/comm/address"
	"github.com/opd-ai/comm/messaging"
	"github.com/opd-ai/comm/network"
	"github.com/opd-ai/comm/routing"
	"github.com/opd-ai/comm/transport"
)

var (
	// ErrClientStopped is returned by sends after Shutdown.
	ErrClientStopped = errors.New("client stopped")

	// ErrInvalidState is returned when an operation is not allowed in the
	// client's current state.
	ErrInvalidState = errors.New("invalid client state")

	// ErrNilNetwork is returned by Run without a network.
	ErrNilNetwork = errors.New("nil network")

	// ErrAddressMismatch is returned by Run when the network serves a
	// different address than the client.
	ErrAddressMismatch = errors.New("network address does not match client")
)

// State is the lifecycle state of a Client.
type State uint8

const (
	// StateCreated accepts callback registration; no socket is held yet.
	StateCreated State = iota
	// StateRunning has a live client goroutine owning the network.
	StateRunning
	// StateStopped has released the socket; sends fail with
	// ErrClientStopped.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// TextMessageCallback is called for every text message delivered to the
// client.
type TextMessageCallback func(msg *messaging.TextMessage)

// Client sends and receives text messages for one address.
type Client struct {
	self    address.Address
	options *Options

	mu            sync.Mutex
	state         State
	onTextMessage TextMessageCallback
	network       *network.Network
	sink          *CommandSink
	stop          chan struct{}
	done          chan struct{}
}

// New creates a client for self. A nil opts uses NewOptions.
func New(self address.Address, opts *Options) *Client {
	options := NewOptions()
	if opts != nil {
		options = &Options{PollTimeout: opts.PollTimeout, Network: opts.Network}
		if options.PollTimeout <= 0 {
			options.PollTimeout = NewOptions().PollTimeout
		}
	}

	return &Client{
		self:    self,
		options: options,
		state:   StateCreated,
	}
}

// StartRouter creates a router client (null address) listening on host.
func StartRouter(host string, opts *Options) (*Client, error) {
	c := New(address.Null(), opts)
	if _, err := c.Listen(host); err != nil {
		return nil, err
	}
	return c, nil
}

// Self returns the client's address.
func (c *Client) Self() address.Address {
	return c.self
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) ownedNetwork() *network.Network {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.network
}

// LocalEndpoint returns the bound socket endpoint, or nil before Run.
func (c *Client) LocalEndpoint() net.Addr {
	n := c.ownedNetwork()
	if n == nil {
		return nil
	}
	return n.LocalEndpoint()
}

// PublicEndpoint returns the endpoint discovered via STUN, or nil.
func (c *Client) PublicEndpoint() net.Addr {
	n := c.ownedNetwork()
	if n == nil {
		return nil
	}
	return n.PublicEndpoint()
}

// Stats returns the traffic counters of the client's network. It is zero
// before Run.
func (c *Client) Stats() network.Stats {
	n := c.ownedNetwork()
	if n == nil {
		return network.Stats{}
	}
	return n.Stats()
}

// OnTextMessage registers the callback for inbound text messages,
// replacing any earlier one. It must be called before Run; afterwards it
// fails with ErrInvalidState. The callback runs on the client goroutine
// and must not call Shutdown.
func (c *Client) OnTextMessage(callback TextMessageCallback) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCreated {
		return fmt.Errorf("%w: cannot register callback while %s", ErrInvalidState, c.state)
	}
	c.onTextMessage = callback
	return nil
}

// Listen binds a network for the client's address on host, using routers
// as relays, and runs it. Bind failures are returned here.
func (c *Client) Listen(host string, routers ...*routing.Node) (*CommandSink, error) {
	if state := c.State(); state != StateCreated {
		return nil, fmt.Errorf("%w: cannot listen while %s", ErrInvalidState, state)
	}

	n, err := network.New(routing.NewNode(c.self, nil), host, routers, c.options.Network)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", host, err)
	}

	sink, err := c.Run(n)
	if err != nil {
		_ = n.Close()
		return nil, err
	}
	return sink, nil
}

// Run takes ownership of n and starts the client goroutine. The returned
// sink queues outbound messages.
func (c *Client) Run(n *network.Network) (*CommandSink, error) {
	if n == nil {
		return nil, ErrNilNetwork
	}
	if n.Self().Address != c.self {
		return nil, fmt.Errorf("%w: network serves %s, client is %s", ErrAddressMismatch, n.Self().Address, c.self)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCreated {
		return nil, fmt.Errorf("%w: cannot run while %s", ErrInvalidState, c.state)
	}

	c.state = StateRunning
	c.network = n
	c.sink = newCommandSink(c.self)
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go c.loop(n, c.sink, c.onTextMessage, c.stop, c.done)

	logrus.WithFields(logrus.Fields{
		"function": "Client.Run",
		"self":     c.self.String(),
		"endpoint": n.LocalEndpoint().String(),
	}).Info("Client running")

	return c.sink, nil
}

// loop alternates between flushing queued commands and one timed receive
// until stop is closed or the network goes away.
func (c *Client) loop(n *network.Network, sink *CommandSink, callback TextMessageCallback, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		c.flush(n, sink)

		datagram, err := n.PollOnce(c.options.PollTimeout)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				c.networkLost(sink, stop)
				return
			}
			logrus.WithFields(logrus.Fields{
				"function": "Client.loop",
				"error":    err.Error(),
			}).Debug("Discarded inbound packet")
			continue
		}
		if datagram != nil {
			c.deliver(datagram, callback)
		}
	}
}

// networkLost moves a running client to StateStopped when its network was
// closed behind its back, so later sends fail instead of queueing forever.
func (c *Client) networkLost(sink *CommandSink, stop <-chan struct{}) {
	select {
	case <-stop:
		return
	default:
	}

	c.mu.Lock()
	if c.state == StateRunning {
		c.state = StateStopped
	}
	c.mu.Unlock()
	sink.close()

	logrus.WithFields(logrus.Fields{
		"function": "Client.networkLost",
		"self":     c.self.String(),
		"dropped":  sink.Pending(),
	}).Warn("Network closed while running, client stopped")
}

func (c *Client) flush(n *network.Network, sink *CommandSink) {
	for _, cmd := range sink.take() {
		if err := n.Send(cmd.recipient, cmd.frame); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "Client.flush",
				"recipient": cmd.recipient.String(),
				"error":     err.Error(),
			}).Warn("Failed to send message")
		}
	}
}

func (c *Client) deliver(datagram *network.Datagram, callback TextMessageCallback) {
	msg, err := messaging.Decode(datagram.Frame)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.deliver",
			"sender":   datagram.Sender.String(),
			"error":    err.Error(),
		}).Debug("Discarded undecodable frame")
		return
	}

	if callback == nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.deliver",
			"sender":   msg.Sender.String(),
		}).Debug("No text message callback registered")
		return
	}

	if err := safeRunCallback(callback, msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.deliver",
			"sender":   msg.Sender.String(),
			"error":    err.Error(),
		}).Error("Text message callback failed")
	}
}

// safeRunCallback invokes callback, converting a panic into an error so a
// faulty callback cannot stop the client goroutine.
func safeRunCallback(callback TextMessageCallback, msg *messaging.TextMessage) (err error) {
	defer func() {
		if e := recover(); e != nil {
			logrus.WithFields(logrus.Fields{
				"function": "safeRunCallback",
				"stack":    string(debug.Stack()),
			}).Debug("Recovered callback panic")
			switch v := e.(type) {
			case error:
				err = fmt.Errorf("panic in callback: %w", v)
			default:
				err = fmt.Errorf("panic in callback: %v", e)
			}
		}
	}()

	callback(msg)
	return nil
}

// Shutdown stops the client and releases its socket. Messages queued
// before the call are flushed on a best-effort basis. Calling Shutdown
// more than once, or before Run, is safe.
func (c *Client) Shutdown() error {
	c.mu.Lock()
	switch c.state {
	case StateStopped:
		c.mu.Unlock()
		return nil
	case StateCreated:
		c.state = StateStopped
		c.mu.Unlock()
		return nil
	}

	c.state = StateStopped
	n, sink, stop, done := c.network, c.sink, c.stop, c.done
	c.mu.Unlock()

	sink.close()
	close(stop)

	// The loop notices stop within one poll timeout unless a callback is
	// still running.
	select {
	case <-done:
	case <-time.After(10 * c.options.PollTimeout):
		logrus.WithField("function", "Client.Shutdown").Warn("Client loop slow to stop, waiting for callback to return")
		<-done
	}

	c.flush(n, sink)
	err := n.Close()

	logrus.WithFields(logrus.Fields{
		"function": "Client.Shutdown",
		"self":     c.self.String(),
	}).Info("Client stopped")

	return err
}
