package routing

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/comm/address"
	"github.com/opd-ai/comm/transport"
)

// DefaultPeerCapacity bounds the peer cache when no capacity is given.
const DefaultPeerCapacity = 1024

// ErrUnresolved means an address has no peer entry and no router is known.
var ErrUnresolved = errors.New("address unresolved")

// RouteKind says how a resolved address is reached.
type RouteKind uint8

const (
	// RouteLoopback is the node itself; nothing is sent on the wire.
	RouteLoopback RouteKind = iota + 1
	// RoutePeer is a directly learned endpoint.
	RoutePeer
	// RouteRouter is a router relaying on the sender's behalf.
	RouteRouter
)

func (k RouteKind) String() string {
	switch k {
	case RouteLoopback:
		return "loopback"
	case RoutePeer:
		return "peer"
	case RouteRouter:
		return "router"
	default:
		return "unknown"
	}
}

// Route is the result of resolving an address. Endpoint is nil for
// loopback routes.
type Route struct {
	Kind     RouteKind
	Endpoint net.Addr
}

// IsLoopback reports whether the route points back at the local node.
func (r Route) IsLoopback() bool {
	return r.Kind == RouteLoopback
}

// RoutingTable resolves addresses to endpoints.
type RoutingTable struct {
	self  address.Address
	clock clock.Clock
	peers *lru.Cache[address.Address, *Node]

	mu         sync.Mutex
	routers    []*Node
	nextRouter int
}

// NewRoutingTable creates a table for the node at self holding at most
// capacity peers. A nil clk uses the wall clock.
func NewRoutingTable(self address.Address, capacity int, clk clock.Clock) *RoutingTable {
	if capacity <= 0 {
		capacity = DefaultPeerCapacity
	}
	if clk == nil {
		clk = clock.New()
	}

	// lru.NewWithEvict only fails for a non-positive size.
	peers, _ := lru.NewWithEvict(capacity, func(addr address.Address, node *Node) {
		logrus.WithFields(logrus.Fields{
			"function":  "RoutingTable.evict",
			"peer":      addr.String(),
			"last_seen": node.LastSeen,
		}).Debug("Peer entry removed")
	})

	return &RoutingTable{
		self:  self,
		clock: clk,
		peers: peers,
	}
}

// Self returns the address of the local node.
func (rt *RoutingTable) Self() address.Address {
	return rt.self
}

// Resolve returns where to send traffic for addr. The local address always
// resolves to a loopback route, a learned peer to its most recent endpoint,
// and anything else to a router chosen round-robin. ErrUnresolved is
// returned when no router is known.
func (rt *RoutingTable) Resolve(addr address.Address) (Route, error) {
	if addr == rt.self {
		return Route{Kind: RouteLoopback}, nil
	}

	if node, ok := rt.peers.Peek(addr); ok {
		return Route{Kind: RoutePeer, Endpoint: node.Endpoint}, nil
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if len(rt.routers) == 0 {
		return Route{}, ErrUnresolved
	}
	router := rt.routers[rt.nextRouter%len(rt.routers)]
	rt.nextRouter = (rt.nextRouter + 1) % len(rt.routers)
	return Route{Kind: RouteRouter, Endpoint: router.Endpoint}, nil
}

// Learn records that addr was heard from endpoint, replacing any previous
// endpoint. The local address, the null address and nil endpoints are
// ignored. It reports whether the table changed.
func (rt *RoutingTable) Learn(addr address.Address, endpoint net.Addr) bool {
	if addr == rt.self || addr.IsNull() || endpoint == nil {
		return false
	}

	now := rt.clock.Now()
	previous, known := rt.peers.Peek(addr)
	rt.peers.Add(addr, &Node{Address: addr, Endpoint: endpoint, LastSeen: now})

	changed := !known || !transport.SameEndpoint(previous.Endpoint, endpoint)
	if changed {
		fields := logrus.Fields{
			"function": "RoutingTable.Learn",
			"peer":     addr.String(),
			"endpoint": endpoint.String(),
		}
		if known {
			fields["previous"] = previous.Endpoint.String()
		}
		logrus.WithFields(fields).Debug("Learned peer endpoint")
	}
	return changed
}

// AddRouter installs node as a permanent relay fallback. Nodes without an
// endpoint and duplicate endpoints are ignored.
func (rt *RoutingTable) AddRouter(node *Node) {
	if node == nil || node.Endpoint == nil {
		logrus.WithField("function", "RoutingTable.AddRouter").Warn("Ignoring router without endpoint")
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	for _, existing := range rt.routers {
		if transport.SameEndpoint(existing.Endpoint, node.Endpoint) {
			return
		}
	}

	router := *node
	router.LastSeen = rt.clock.Now()
	rt.routers = append(rt.routers, &router)

	logrus.WithFields(logrus.Fields{
		"function": "RoutingTable.AddRouter",
		"router":   router.String(),
	}).Debug("Installed router")
}

// Routers returns copies of the configured routers in insertion order.
func (rt *RoutingTable) Routers() []*Node {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	result := make([]*Node, len(rt.routers))
	for i, router := range rt.routers {
		copied := *router
		result[i] = &copied
	}
	return result
}

// Peer returns a copy of the peer entry for addr.
func (rt *RoutingTable) Peer(addr address.Address) (*Node, bool) {
	node, ok := rt.peers.Peek(addr)
	if !ok {
		return nil, false
	}
	copied := *node
	return &copied, true
}

// Peers returns copies of all peer entries, least recently heard first.
func (rt *RoutingTable) Peers() []*Node {
	nodes := rt.peers.Values()
	result := make([]*Node, 0, len(nodes))
	for _, node := range nodes {
		copied := *node
		result = append(result, &copied)
	}
	return result
}

// PeerCount returns the number of peer entries.
func (rt *RoutingTable) PeerCount() int {
	return rt.peers.Len()
}

// Forget removes the peer entry for addr. Routers cannot be forgotten.
func (rt *RoutingTable) Forget(addr address.Address) bool {
	return rt.peers.Remove(addr)
}

// Prune removes peers not heard from within maxAge and returns how many
// were removed.
func (rt *RoutingTable) Prune(maxAge time.Duration) int {
	now := rt.clock.Now()
	removed := 0
	for _, addr := range rt.peers.Keys() {
		node, ok := rt.peers.Peek(addr)
		if !ok || node.IsActive(now, maxAge) {
			continue
		}
		if rt.peers.Remove(addr) {
			removed++
		}
	}

	if removed > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "RoutingTable.Prune",
			"removed":  removed,
			"max_age":  maxAge.String(),
		}).Debug("Pruned stale peers")
	}
	return removed
}
