package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressInUse indicates the local endpoint is already bound
	ErrAddressInUse = errors.New("address already in use")

	// ErrBindFailure indicates the socket could not be opened
	ErrBindFailure = errors.New("bind failure")

	// ErrClosed indicates the transport has been closed
	ErrClosed = errors.New("transport closed")

	// ErrTimeout indicates no datagram arrived before the deadline
	ErrTimeout = errors.New("receive timed out")

	// ErrFrameTooLarge indicates a datagram exceeds the packet size limit
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrUnsupportedScheme indicates an endpoint spec with a scheme other than udp
	ErrUnsupportedScheme = errors.New("unsupported endpoint scheme")
)

// OpError describes a failed transport operation.
type OpError struct {
	Op   string // operation that caused the error
	Addr string // address if relevant
	Err  error  // underlying error
}

func (e *OpError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("udp %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("udp %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func newOpError(op, addr string, err error) *OpError {
	return &OpError{
		Op:   op,
		Addr: addr,
		Err:  err,
	}
}
