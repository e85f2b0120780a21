package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/comm/limits"
)

// receiveBufferSize is large enough for any UDP payload, so oversized
// datagrams are seen whole instead of silently truncated.
const receiveBufferSize = 64 * 1024

// UDPTransport sends and receives datagrams over a single UDP socket.
// SendTo may be called from any goroutine. Receive is meant to be driven by
// one goroutine at a time; concurrent callers are serialized.
type UDPTransport struct {
	conn       net.PacketConn
	listenAddr net.Addr

	recvMu sync.Mutex
	buffer []byte

	closed atomic.Bool
}

// Bind opens a UDP socket on spec ("host:port" or "udp://host:port"). A
// port of 0 picks an ephemeral port.
func Bind(spec string) (*UDPTransport, error) {
	hostport, err := SplitEndpointSpec(spec)
	if err != nil {
		return nil, newOpError("bind", spec, fmt.Errorf("%w: %w", ErrBindFailure, err))
	}

	conn, err := net.ListenPacket("udp", hostport)
	if err != nil {
		kind := ErrBindFailure
		if errors.Is(err, syscall.EADDRINUSE) {
			kind = ErrAddressInUse
		}
		logrus.WithFields(logrus.Fields{
			"function": "Bind",
			"endpoint": spec,
			"error":    err.Error(),
		}).Error("Failed to bind UDP socket")
		return nil, newOpError("bind", spec, fmt.Errorf("%w: %w", kind, err))
	}

	t := &UDPTransport{
		conn:       conn,
		listenAddr: conn.LocalAddr(),
		buffer:     make([]byte, receiveBufferSize),
	}

	logrus.WithFields(logrus.Fields{
		"function": "Bind",
		"endpoint": t.listenAddr.String(),
	}).Debug("UDP transport bound")

	return t, nil
}

// SendTo transmits data as one datagram to endpoint. Delivery is never
// guaranteed; only local failures are reported.
func (t *UDPTransport) SendTo(endpoint net.Addr, data []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if endpoint == nil {
		return newOpError("send", "", errors.New("nil endpoint"))
	}
	if err := limits.ValidatePacket(data); err != nil {
		if errors.Is(err, limits.ErrMessageTooLarge) {
			err = fmt.Errorf("%w: %w", ErrFrameTooLarge, err)
		}
		return newOpError("send", endpoint.String(), err)
	}

	if _, err := t.conn.WriteTo(data, endpoint); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return newOpError("send", endpoint.String(), err)
	}
	return nil
}

// Receive waits up to timeout for one datagram and returns it together
// with the endpoint it came from. A timeout of zero or less waits until a
// datagram arrives or the transport is closed.
func (t *UDPTransport) Receive(timeout time.Duration) (net.Addr, []byte, error) {
	if t.closed.Load() {
		return nil, nil, ErrClosed
	}

	t.recvMu.Lock()
	defer t.recvMu.Unlock()

	return t.readLocked(timeout)
}

func (t *UDPTransport) readLocked(timeout time.Duration) (net.Addr, []byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	return t.readUntilLocked(deadline)
}

func (t *UDPTransport) readUntilLocked(deadline time.Time) (net.Addr, []byte, error) {
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, nil, t.handleReadError(err)
	}

	n, addr, err := t.conn.ReadFrom(t.buffer)
	if err != nil {
		return nil, nil, t.handleReadError(err)
	}

	data := make([]byte, n)
	copy(data, t.buffer[:n])
	return addr, data, nil
}

// handleReadError maps socket read errors onto the transport's sentinels.
func (t *UDPTransport) handleReadError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, net.ErrClosed) || t.closed.Load() {
		return ErrClosed
	}
	return newOpError("receive", t.listenAddr.String(), err)
}

// LocalAddr returns the endpoint the transport is bound to.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.listenAddr
}

// Close releases the socket. Closing twice is a no-op.
func (t *UDPTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "UDPTransport.Close",
		"endpoint": t.listenAddr.String(),
	}).Debug("Closing UDP transport")

	return t.conn.Close()
}
