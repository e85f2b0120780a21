// Package transport owns the UDP socket of a node.
//
// The transport moves raw datagrams between socket addresses and knows
// nothing about logical addresses, envelopes or messages. Each datagram is
// delivered as a whole; there is no ordering guarantee beyond the order in
// which the operating system hands datagrams to the socket.
//
// # Usage
//
//	t, err := transport.Bind("udp://0.0.0.0:6667")
//	if err != nil {
//	    // errors.Is(err, transport.ErrAddressInUse) or transport.ErrBindFailure
//	}
//	defer t.Close()
//
//	if err := t.SendTo(peer, data); err != nil {
//	    // only local failures: ErrFrameTooLarge, ErrClosed
//	}
//
//	from, data, err := t.Receive(100 * time.Millisecond)
//	switch {
//	case errors.Is(err, transport.ErrTimeout):
//	    // nothing arrived
//	case errors.Is(err, transport.ErrClosed):
//	    // transport shut down
//	}
//
// # Endpoint Specs
//
// Endpoints are written either as "host:port" or as "udp://host:port".
// [ResolveEndpoint] turns such a spec into a *net.UDPAddr.
//
// # STUN
//
// [UDPTransport.QuerySTUN] asks a STUN server, from the transport's own
// socket, which public endpoint the socket is mapped to. This is the
// endpoint other participants see when the node sits behind a NAT.
package transport
