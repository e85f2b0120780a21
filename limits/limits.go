package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxPacketSize is the largest datagram handled by the transport.
	MaxPacketSize = 4096

	// AddressSize is the width of an address field on the wire.
	AddressSize = 20

	// EnvelopeHeaderSize is the routing envelope: type byte plus recipient.
	EnvelopeHeaderSize = 1 + AddressSize

	// MaxFrameSize is the largest message frame that fits in one packet.
	MaxFrameSize = MaxPacketSize - EnvelopeHeaderSize

	// MaxTextSize is the largest UTF-8 payload of a text message.
	MaxTextSize = MaxFrameSize - AddressSize
)

var (
	// ErrMessageEmpty indicates an empty packet was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates data exceeds its maximum size
	ErrMessageTooLarge = errors.New("message too large")
)

// ValidateMessageSize validates data against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidatePacket validates an outbound datagram against MaxPacketSize.
func ValidatePacket(packet []byte) error {
	return ValidateMessageSize(packet, MaxPacketSize)
}

// ValidateFrame validates a message frame against MaxFrameSize.
func ValidateFrame(frame []byte) error {
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: frame size %d exceeds limit %d", ErrMessageTooLarge, len(frame), MaxFrameSize)
	}
	return nil
}

// ValidateText validates message text against MaxTextSize. Empty text is
// allowed.
func ValidateText(text []byte) error {
	if len(text) > MaxTextSize {
		return fmt.Errorf("%w: text size %d exceeds limit %d", ErrMessageTooLarge, len(text), MaxTextSize)
	}
	return nil
}
