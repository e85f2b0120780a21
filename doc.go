// Package comm implements a small peer-to-peer text messaging client over
// UDP.
//
// Participants are named by content-derived addresses rather than by
// network location. Two parties that share a secret derive the same
// address for each other without any lookup service, and router nodes
// (which have the null address) relay traffic for addresses that have not
// been reached directly yet.
//
// # Getting Started
//
// Derive your address, register a callback, and start listening:
//
//	client := comm.New(address.ForString("alice's secret"), nil)
//	client.OnTextMessage(func(msg *messaging.TextMessage) {
//	    fmt.Printf("%s: %s\n", msg.Sender, msg.Text)
//	})
//
//	router, _ := routing.NewRouterNode("udp://203.0.113.5:6667")
//	sink, err := client.Listen("0.0.0.0:0", router)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Shutdown()
//
//	bob := address.ForString("bob's secret")
//	sink.SendTextMessage(bob, "hello")
//
// # Lifecycle
//
// A [Client] moves through three states:
//
//   - Created: callbacks may be registered.
//   - Running: a single background goroutine owns the network, sends
//     queued commands, and invokes callbacks in arrival order.
//   - Stopped: the socket is released and further sends fail with
//     [ErrClientStopped].
//
// Shutdown is cooperative and completes within one poll timeout.
//
// # Delivery
//
// Delivery is best effort. Messages may be lost, duplicated or reordered
// by the network and nothing is encrypted or authenticated; the sender
// address in a message is whatever the sender claims.
//
// # Routers
//
// A router is a client with the null address. [StartRouter] binds one:
//
//	router, err := comm.StartRouter("0.0.0.0:6667", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer router.Shutdown()
//
// Integration architecture:
//
//   - [address]: content-derived identifiers
//   - [messaging]: text message frames
//   - [routing]: address to endpoint resolution
//   - [network]: routing envelope, relay and maintenance over UDP
//   - [transport]: the UDP socket and STUN discovery
package comm
