package comm

import (
	"sync"

	"github.com/opd-ai/comm/address"
	"github.com/opd-ai/comm/messaging"
)

type command struct {
	recipient address.Address
	frame     messaging.Frame
}

// CommandSink queues outbound messages for a running Client. It is safe
// for use by any number of goroutines; messages from one goroutine are
// sent in the order they were queued.
type CommandSink struct {
	self address.Address

	mu     sync.Mutex
	queue  []command
	closed bool
}

func newCommandSink(self address.Address) *CommandSink {
	return &CommandSink{self: self}
}

// SendTextMessage queues text for recipient and returns without waiting
// for the network. It fails with ErrClientStopped once the client has been
// shut down, and with a messaging or limits error when text cannot be
// framed. Delivery is not confirmed.
func (s *CommandSink) SendTextMessage(recipient address.Address, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClientStopped
	}

	msg := messaging.NewTextMessage(s.self, text)
	if err := msg.Validate(); err != nil {
		return err
	}

	s.queue = append(s.queue, command{recipient: recipient, frame: messaging.Encode(msg)})
	return nil
}

// Pending returns the number of queued messages not yet handed to the
// network.
func (s *CommandSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// take removes and returns everything queued so far.
func (s *CommandSink) take() []command {
	s.mu.Lock()
	defer s.mu.Unlock()

	commands := s.queue
	s.queue = nil
	return commands
}

func (s *CommandSink) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
