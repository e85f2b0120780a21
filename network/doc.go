// Package network routes message frames between addresses over one UDP
// socket.
//
// A Network owns a transport and a routing table. Every datagram carries a
// small envelope naming its type and its recipient so that router nodes
// can relay traffic for addresses that have not been reached directly:
//
//	[1 byte type][20 byte recipient][body]
//
// Inbound data teaches the routing table where its claimed sender was last
// heard from. Maintenance (announcing to routers, pruning stale peers) runs
// inside PollOnce, so a Network needs no goroutine of its own.
//
// Example:
//
//	router, _ := routing.NewRouterNode("udp://203.0.113.5:6667")
//	self := routing.NewNode(address.ForString("shared-secret"), nil)
//	n, err := network.New(self, "0.0.0.0:0", []*routing.Node{router}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer n.Close()
package network
