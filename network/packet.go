package network

import (
	"errors"
	"fmt"

	"github.com/opd-ai/comm/address"
	"github.com/opd-ai/comm/limits"
	"github.com/opd-ai/comm/messaging"
)

// ErrMalformedPacket means an inbound datagram does not carry a valid
// envelope.
var ErrMalformedPacket = errors.New("malformed packet")

// PacketType identifies what an envelope carries.
type PacketType byte

const (
	// PacketData carries a message frame to its recipient.
	PacketData PacketType = iota + 1
	// PacketAnnounce carries the sender's address so routers learn its
	// current endpoint.
	PacketAnnounce
	// PacketRelay is a data packet forwarded by a router. It is never
	// forwarded again and does not update routing state.
	PacketRelay
)

func (t PacketType) String() string {
	switch t {
	case PacketData:
		return "data"
	case PacketAnnounce:
		return "announce"
	case PacketRelay:
		return "relay"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// Packet is a routing envelope.
type Packet struct {
	PacketType PacketType
	Recipient  address.Address
	Body       []byte
}

// Sender returns the address that originated the packet: the frame's
// sender for data and relay packets, the body for announcements.
func (p *Packet) Sender() (address.Address, error) {
	switch p.PacketType {
	case PacketAnnounce:
		return address.FromBytes(p.Body)
	case PacketData, PacketRelay:
		return messaging.PeekSender(p.Body)
	default:
		return address.Address{}, fmt.Errorf("%w: unknown type %d", ErrMalformedPacket, byte(p.PacketType))
	}
}

// Serialize converts a packet to a byte slice for transmission.
func (p *Packet) Serialize() ([]byte, error) {
	if err := p.validateBody(); err != nil {
		return nil, err
	}

	// Format: [packet type (1 byte)][recipient (20 bytes)][body (variable)]
	result := make([]byte, limits.EnvelopeHeaderSize+len(p.Body))
	result[0] = byte(p.PacketType)
	copy(result[1:limits.EnvelopeHeaderSize], p.Recipient[:])
	copy(result[limits.EnvelopeHeaderSize:], p.Body)

	return result, nil
}

// ParsePacket converts a byte slice to a Packet. The returned packet does
// not alias data.
func ParsePacket(data []byte) (*Packet, error) {
	if len(data) < limits.EnvelopeHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the envelope header", ErrMalformedPacket, len(data))
	}

	packet := &Packet{
		PacketType: PacketType(data[0]),
		Body:       make([]byte, len(data)-limits.EnvelopeHeaderSize),
	}
	copy(packet.Recipient[:], data[1:limits.EnvelopeHeaderSize])
	copy(packet.Body, data[limits.EnvelopeHeaderSize:])

	if err := packet.validateBody(); err != nil {
		return nil, err
	}
	return packet, nil
}

func (p *Packet) validateBody() error {
	switch p.PacketType {
	case PacketAnnounce:
		if len(p.Body) != address.Size {
			return fmt.Errorf("%w: announce body is %d bytes, want %d", ErrMalformedPacket, len(p.Body), address.Size)
		}
	case PacketData, PacketRelay:
		if len(p.Body) < address.Size {
			return fmt.Errorf("%w: %s body is %d bytes, shorter than a sender", ErrMalformedPacket, p.PacketType, len(p.Body))
		}
		if err := limits.ValidateFrame(p.Body); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedPacket, err)
		}
	default:
		return fmt.Errorf("%w: unknown type %d", ErrMalformedPacket, byte(p.PacketType))
	}
	return nil
}
