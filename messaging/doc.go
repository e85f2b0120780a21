// Package messaging implements the text message model and its wire codec.
//
// # Overview
//
// A [TextMessage] pairs the sender's [address.Address] with UTF-8 text. On
// the wire it travels as a [Frame]:
//
//	[20-byte sender address][UTF-8 text bytes]
//
// Frames travel one per datagram, so the text length is implied by the
// datagram length and no inner length prefix is used.
//
// # Usage
//
//	msg := messaging.NewTextMessage(me, "Hello!")
//	if err := msg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	frame := messaging.Encode(msg)
//
//	decoded, err := messaging.Decode(frame)
//	if err != nil {
//	    // ErrTruncatedFrame or ErrInvalidUTF8: discard the datagram
//	}
//
// Routers and the network layer that only need to know who sent a frame
// use [PeekSender], which never inspects the text.
//
// # Concurrency
//
// Everything in this package is pure. A [TextMessage] is immutable after
// construction and may be shared between goroutines.
package messaging
