// Package limits provides centralized size constants and validation
// functions for packets, frames and message text.
//
// # Size Hierarchy
//
//   - MaxPacketSize (4096 bytes): the largest datagram the transport sends
//     or expects to receive.
//   - MaxFrameSize: a packet minus the routing envelope header.
//   - MaxTextSize: a frame minus the sender address field.
//
// # Validation Functions
//
//	err := limits.ValidateText([]byte(text))
//	if err != nil {
//	    // ErrMessageTooLarge
//	}
//
// Text may be empty; packets may not.
package limits
