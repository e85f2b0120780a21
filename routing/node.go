package routing

import (
	"fmt"
	"net"
	"time"

	"github.com/opd-ai/comm/address"
	"github.com/opd-ai/comm/transport"
)

// Node pairs an address with the endpoint it is reachable at.
type Node struct {
	Address  address.Address
	Endpoint net.Addr
	LastSeen time.Time
}

// NewNode creates a node for addr reachable at endpoint.
func NewNode(addr address.Address, endpoint net.Addr) *Node {
	return &Node{
		Address:  addr,
		Endpoint: endpoint,
		LastSeen: time.Now(),
	}
}

// NewRouterNode creates a router node, which has the null address, from an
// endpoint spec such as "udp://203.0.113.5:6667".
func NewRouterNode(spec string) (*Node, error) {
	endpoint, err := transport.ResolveEndpoint(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid router endpoint: %w", err)
	}
	return NewNode(address.Null(), endpoint), nil
}

// IsRouter reports whether the node has no routable identity of its own.
func (n *Node) IsRouter() bool {
	return n.Address.IsNull()
}

// IsActive reports whether the node was heard from within timeout of now.
func (n *Node) IsActive(now time.Time, timeout time.Duration) bool {
	return now.Sub(n.LastSeen) < timeout
}

// Touch marks the node as heard from at now.
func (n *Node) Touch(now time.Time) {
	n.LastSeen = now
}

func (n *Node) String() string {
	endpoint := "<none>"
	if n.Endpoint != nil {
		endpoint = n.Endpoint.String()
	}
	if n.IsRouter() {
		return fmt.Sprintf("router@%s", endpoint)
	}
	return fmt.Sprintf("%s@%s", n.Address, endpoint)
}
