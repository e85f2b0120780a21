package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/opd-ai/comm/address"
	"github.com/opd-ai/comm/limits"
	"github.com/opd-ai/comm/messaging"
	"github.com/opd-ai/comm/routing"
	"github.com/opd-ai/comm/transport"
)

var (
	// ErrNoRoute means the recipient has no peer entry and no router is
	// configured.
	ErrNoRoute = errors.New("no route to address")

	// ErrNilSelf means New was called without a local node.
	ErrNilSelf = errors.New("nil local node")
)

// Datagram is a message frame delivered to the local node.
type Datagram struct {
	// Sender is the address claimed by the frame.
	Sender address.Address
	// Frame is the message frame.
	Frame messaging.Frame
	// Endpoint is where the datagram came from. For frames sent to
	// ourselves it is the local endpoint.
	Endpoint net.Addr
	// Relayed is set when a router forwarded the frame.
	Relayed bool
}

// Stats counts traffic handled by a Network.
type Stats struct {
	Sent     uint64
	Received uint64
	Relayed  uint64
	Dropped  uint64
}

// Network sends and receives frames for one local address.
//
// Send and PollOnce are meant to be driven by a single goroutine; the
// accessors and Close may be called from anywhere.
type Network struct {
	self      *routing.Node
	config    Config
	relay     bool
	transport *transport.UDPTransport
	table     *routing.RoutingTable

	mu              sync.Mutex
	inbox           []messaging.Frame
	maintained      bool
	lastMaintenance time.Time
	publicEndpoint  net.Addr

	sent     atomic.Uint64
	received atomic.Uint64
	relayed  atomic.Uint64
	dropped  atomic.Uint64

	closed atomic.Bool
}

// New binds a UDP socket at host and returns a Network for self that falls
// back to routers for unknown addresses. A nil cfg uses DefaultConfig.
// Bind failures are returned as is; a failed STUN query is only logged.
func New(self *routing.Node, host string, routers []*routing.Node, cfg *Config) (*Network, error) {
	if self == nil {
		return nil, ErrNilSelf
	}
	config := cfg.withDefaults()

	tr, err := transport.Bind(host)
	if err != nil {
		return nil, err
	}

	now := config.Clock.Now()
	n := &Network{
		self: &routing.Node{
			Address:  self.Address,
			Endpoint: tr.LocalAddr(),
			LastSeen: now,
		},
		config:    config,
		relay:     config.Relay || self.IsRouter(),
		transport: tr,
		table:     routing.NewRoutingTable(self.Address, config.PeerCapacity, config.Clock),
	}

	for _, router := range routers {
		n.table.AddRouter(router)
	}

	if config.STUNServer != "" {
		n.discoverPublicEndpoint()
	}

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"self":     n.self.String(),
		"routers":  len(n.table.Routers()),
		"relay":    n.relay,
	}).Info("Network started")

	return n, nil
}

func (n *Network) discoverPublicEndpoint() {
	ctx, cancel := context.WithTimeout(context.Background(), n.config.STUNTimeout)
	defer cancel()

	public, err := n.transport.QuerySTUN(ctx, n.config.STUNServer, n.config.STUNTimeout)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "discoverPublicEndpoint",
			"server":   n.config.STUNServer,
			"error":    err.Error(),
		}).Warn("STUN query failed, public endpoint unknown")
		return
	}

	n.mu.Lock()
	n.publicEndpoint = public
	n.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "discoverPublicEndpoint",
		"server":   n.config.STUNServer,
		"public":   public.String(),
	}).Info("Discovered public endpoint")
}

// Self returns the local node.
func (n *Network) Self() *routing.Node {
	self := *n.self
	return &self
}

// LocalEndpoint returns the endpoint the socket is bound to.
func (n *Network) LocalEndpoint() net.Addr {
	return n.transport.LocalAddr()
}

// PublicEndpoint returns the endpoint discovered via STUN, or nil.
func (n *Network) PublicEndpoint() net.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.publicEndpoint
}

// Table returns the routing table.
func (n *Network) Table() *routing.RoutingTable {
	return n.table
}

// Stats returns a snapshot of the traffic counters.
func (n *Network) Stats() Stats {
	return Stats{
		Sent:     n.sent.Load(),
		Received: n.received.Load(),
		Relayed:  n.relayed.Load(),
		Dropped:  n.dropped.Load(),
	}
}

// Send routes frame to addr. Frames for the local address are queued and
// returned by the next PollOnce without touching the socket. ErrNoRoute is
// returned when addr cannot be resolved.
func (n *Network) Send(addr address.Address, frame messaging.Frame) error {
	if n.closed.Load() {
		return transport.ErrClosed
	}
	if _, err := messaging.PeekSender(frame); err != nil {
		return err
	}
	if err := limits.ValidateFrame(frame); err != nil {
		return err
	}

	route, err := n.table.Resolve(addr)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrNoRoute, addr, err)
	}

	if route.IsLoopback() {
		queued := make(messaging.Frame, len(frame))
		copy(queued, frame)

		n.mu.Lock()
		n.inbox = append(n.inbox, queued)
		n.mu.Unlock()

		n.sent.Add(1)
		return nil
	}

	packet := &Packet{PacketType: PacketData, Recipient: addr, Body: frame}
	if err := n.sendPacket(route.Endpoint, packet); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Network.Send",
		"recipient": addr.String(),
		"route":     route.Kind.String(),
		"endpoint":  route.Endpoint.String(),
		"size":      len(frame),
	}).Debug("Sent frame")
	return nil
}

func (n *Network) sendPacket(endpoint net.Addr, packet *Packet) error {
	data, err := packet.Serialize()
	if err != nil {
		return err
	}
	if err := n.transport.SendTo(endpoint, data); err != nil {
		return err
	}
	n.sent.Add(1)
	return nil
}

// PollOnce runs due maintenance and then waits up to timeout for one
// inbound datagram. It returns nil, nil when nothing arrived in time or
// when the packet was handled internally (announcements, relayed traffic,
// packets for other nodes). Malformed packets are reported with an error
// wrapping ErrMalformedPacket; the Network stays usable.
func (n *Network) PollOnce(timeout time.Duration) (*Datagram, error) {
	if n.closed.Load() {
		return nil, transport.ErrClosed
	}

	n.maintain()

	if frame, ok := n.popInbox(); ok {
		sender, _ := messaging.PeekSender(frame)
		return &Datagram{Sender: sender, Frame: frame, Endpoint: n.LocalEndpoint()}, nil
	}

	endpoint, data, err := n.transport.Receive(timeout)
	if err != nil {
		if errors.Is(err, transport.ErrTimeout) {
			return nil, nil
		}
		return nil, err
	}
	n.received.Add(1)

	return n.handlePacket(endpoint, data)
}

func (n *Network) popInbox() (messaging.Frame, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.inbox) == 0 {
		return nil, false
	}
	frame := n.inbox[0]
	n.inbox[0] = nil
	n.inbox = n.inbox[1:]
	return frame, true
}

func (n *Network) handlePacket(endpoint net.Addr, data []byte) (*Datagram, error) {
	packet, err := ParsePacket(data)
	if err != nil {
		n.dropped.Add(1)
		return nil, err
	}

	sender, err := packet.Sender()
	if err != nil {
		n.dropped.Add(1)
		return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}

	switch packet.PacketType {
	case PacketAnnounce:
		n.table.Learn(sender, endpoint)
		return nil, nil

	case PacketData:
		n.table.Learn(sender, endpoint)
		if packet.Recipient == n.self.Address {
			return &Datagram{Sender: sender, Frame: packet.Body, Endpoint: endpoint}, nil
		}
		if n.relay {
			n.forward(packet, endpoint)
			return nil, nil
		}

	case PacketRelay:
		if packet.Recipient == n.self.Address {
			return &Datagram{Sender: sender, Frame: packet.Body, Endpoint: endpoint, Relayed: true}, nil
		}
	}

	n.dropped.Add(1)
	logrus.WithFields(logrus.Fields{
		"function":  "Network.handlePacket",
		"type":      packet.PacketType.String(),
		"recipient": packet.Recipient.String(),
		"from":      endpoint.String(),
	}).Debug("Dropped packet addressed to another node")
	return nil, nil
}

// forward relays a data packet to its recipient's learned endpoint. Only
// directly learned peers are used, so traffic makes at most one relay hop.
func (n *Network) forward(packet *Packet, from net.Addr) {
	logger := logrus.WithFields(logrus.Fields{
		"function":  "Network.forward",
		"recipient": packet.Recipient.String(),
		"from":      from.String(),
	})

	route, err := n.table.Resolve(packet.Recipient)
	if err != nil || route.Kind != routing.RoutePeer || transport.SameEndpoint(route.Endpoint, from) {
		n.dropped.Add(1)
		logger.Debug("No peer route for relayed packet, dropping")
		return
	}

	relayed := &Packet{PacketType: PacketRelay, Recipient: packet.Recipient, Body: packet.Body}
	if err := n.sendPacket(route.Endpoint, relayed); err != nil {
		n.dropped.Add(1)
		logger.WithField("error", err.Error()).Warn("Failed to relay packet")
		return
	}

	n.relayed.Add(1)
	logger.WithField("to", route.Endpoint.String()).Debug("Relayed packet")
}

// maintain announces to routers and prunes stale peers once per
// AnnounceInterval, starting with the first call.
func (n *Network) maintain() {
	now := n.config.Clock.Now()

	n.mu.Lock()
	due := !n.maintained || now.Sub(n.lastMaintenance) >= n.config.AnnounceInterval
	if due {
		n.maintained = true
		n.lastMaintenance = now
	}
	n.mu.Unlock()

	if !due {
		return
	}

	if err := n.Announce(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Network.maintain",
			"error":    err.Error(),
		}).Warn("Announcement to some routers failed")
	}
	n.table.Prune(n.config.PeerTTL)
}

// Announce tells every router where the local address is reachable. Nodes
// with the null address have nothing to announce.
func (n *Network) Announce() error {
	if n.self.IsRouter() {
		return nil
	}

	var errs error
	for _, router := range n.table.Routers() {
		packet := &Packet{
			PacketType: PacketAnnounce,
			Recipient:  address.Null(),
			Body:       n.self.Address.Bytes(),
		}
		if err := n.sendPacket(router.Endpoint, packet); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("announce to %s: %w", router.Endpoint, err))
		}
	}
	return errs
}

// Close releases the socket. Closing twice is a no-op.
func (n *Network) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "Network.Close",
		"self":     n.self.String(),
	}).Info("Network stopped")

	return n.transport.Close()
}
