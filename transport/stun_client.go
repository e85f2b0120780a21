package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/pion/stun"
	"github.com/sirupsen/logrus"
)

// DefaultSTUNTimeout bounds a STUN binding exchange when the caller gives
// no tighter deadline.
const DefaultSTUNTimeout = 5 * time.Second

// ErrNoMappedAddress indicates a STUN response carried neither
// XOR-MAPPED-ADDRESS nor MAPPED-ADDRESS.
var ErrNoMappedAddress = errors.New("no mapped address in STUN response")

// QuerySTUN sends a binding request to server from the transport's own
// socket and returns the public endpoint the server observed. Datagrams
// that are not the matching STUN response are discarded while waiting, so
// this is meant to run before the transport carries traffic.
func (t *UDPTransport) QuerySTUN(ctx context.Context, server string, timeout time.Duration) (net.Addr, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if timeout <= 0 {
		timeout = DefaultSTUNTimeout
	}

	serverAddr, err := ResolveEndpoint(server)
	if err != nil {
		return nil, err
	}

	request, err := stun.Build(stun.TransactionID, stun.BindingRequest, stun.Fingerprint)
	if err != nil {
		return nil, newOpError("stun", server, fmt.Errorf("build request: %w", err))
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	t.recvMu.Lock()
	defer t.recvMu.Unlock()

	if _, err := t.conn.WriteTo(request.Raw, serverAddr); err != nil {
		return nil, newOpError("stun", server, fmt.Errorf("send request: %w", err))
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		from, data, err := t.readUntilLocked(deadline)
		if err != nil {
			return nil, newOpError("stun", server, err)
		}
		if !SameEndpoint(from, serverAddr) || !stun.IsMessage(data) {
			logrus.WithFields(logrus.Fields{
				"function": "QuerySTUN",
				"from":     from.String(),
				"size":     len(data),
			}).Debug("Discarding non-STUN datagram during binding request")
			continue
		}

		mapped, err := parseBindingResponse(data, request.TransactionID)
		if err != nil {
			return nil, newOpError("stun", server, err)
		}
		if mapped == nil {
			continue
		}

		logrus.WithFields(logrus.Fields{
			"function": "QuerySTUN",
			"server":   server,
			"mapped":   mapped.String(),
		}).Info("Discovered public endpoint via STUN")
		return mapped, nil
	}
}

// parseBindingResponse extracts the mapped endpoint from a STUN response.
// It returns nil, nil for a valid message that belongs to another
// transaction.
func parseBindingResponse(data []byte, transactionID [stun.TransactionIDSize]byte) (*net.UDPAddr, error) {
	res := new(stun.Message)
	res.Raw = append(res.Raw[:0], data...)
	if err := res.Decode(); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if res.TransactionID != transactionID {
		return nil, nil
	}
	if res.Type != stun.BindingSuccess {
		return nil, fmt.Errorf("unexpected STUN response type %s", res.Type)
	}

	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(res); err == nil {
		return &net.UDPAddr{IP: xorAddr.IP, Port: xorAddr.Port}, nil
	}

	var mappedAddr stun.MappedAddress
	if err := mappedAddr.GetFrom(res); err == nil {
		return &net.UDPAddr{IP: mappedAddr.IP, Port: mappedAddr.Port}, nil
	}

	return nil, ErrNoMappedAddress
}
