package messaging

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/opd-ai/comm/address"
	"github.com/opd-ai/comm/limits"
)

var (
	// ErrTruncatedFrame means the frame is shorter than the sender field.
	ErrTruncatedFrame = errors.New("truncated frame")

	// ErrInvalidUTF8 means the frame text is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8 text")
)

// Frame is the wire encoding of a TextMessage.
type Frame []byte

// TextMessage is a text sent by the participant at Sender.
type TextMessage struct {
	Sender address.Address
	Text   string
}

// NewTextMessage creates a message from sender carrying text.
func NewTextMessage(sender address.Address, text string) *TextMessage {
	return &TextMessage{
		Sender: sender,
		Text:   text,
	}
}

// Validate reports whether the message can be encoded into a frame that
// receivers will accept.
func (m *TextMessage) Validate() error {
	if !utf8.ValidString(m.Text) {
		return ErrInvalidUTF8
	}
	return limits.ValidateText([]byte(m.Text))
}

// String formats the message for display.
func (m *TextMessage) String() string {
	return fmt.Sprintf("%s: %s", m.Sender, m.Text)
}

// Encode serializes msg into a frame.
func Encode(msg *TextMessage) Frame {
	frame := make(Frame, address.Size+len(msg.Text))
	copy(frame, msg.Sender[:])
	copy(frame[address.Size:], msg.Text)
	return frame
}

// Decode parses a frame back into a TextMessage. The returned message does
// not alias frame.
func Decode(frame Frame) (*TextMessage, error) {
	sender, err := PeekSender(frame)
	if err != nil {
		return nil, err
	}

	text := frame[address.Size:]
	if !utf8.Valid(text) {
		return nil, ErrInvalidUTF8
	}

	return &TextMessage{
		Sender: sender,
		Text:   string(text),
	}, nil
}

// PeekSender returns the sender address claimed by frame without decoding
// the text.
func PeekSender(frame []byte) (address.Address, error) {
	if len(frame) < address.Size {
		return address.Address{}, fmt.Errorf("%w: %d bytes", ErrTruncatedFrame, len(frame))
	}
	var sender address.Address
	copy(sender[:], frame[:address.Size])
	return sender, nil
}
