package transport

import (
	"fmt"
	"net"
	"strings"
)

// Scheme is the only endpoint scheme understood by this transport.
const Scheme = "udp"

// SplitEndpointSpec strips an optional "udp://" prefix from spec and returns
// the host:port part.
func SplitEndpointSpec(spec string) (string, error) {
	scheme, hostport, found := strings.Cut(spec, "://")
	if !found {
		return spec, nil
	}
	if scheme != Scheme {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	return hostport, nil
}

// ResolveEndpoint resolves an endpoint spec of the form "host:port" or
// "udp://host:port".
func ResolveEndpoint(spec string) (*net.UDPAddr, error) {
	hostport, err := SplitEndpointSpec(spec)
	if err != nil {
		return nil, err
	}

	addr, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return nil, newOpError("resolve", spec, err)
	}
	return addr, nil
}

// SameEndpoint reports whether a and b denote the same socket address.
func SameEndpoint(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	ua, okA := a.(*net.UDPAddr)
	ub, okB := b.(*net.UDPAddr)
	if okA && okB {
		return ua.Port == ub.Port && ua.IP.Equal(ub.IP) && ua.Zone == ub.Zone
	}
	return a.Network() == b.Network() && a.String() == b.String()
}
