// Package address implements the fixed-width, content-derived identifiers
// used to name participants of the overlay.
//
// An Address is 160 bits wide. It is either derived from arbitrary content
// (typically a secret shared between correspondents) or it is the null
// address reserved for router nodes.
//
// Example:
//
//	me := address.ForString("shared-secret")
//	fmt.Println(me) // 40 lower-case hex characters
//
//	peer, err := address.FromString("8b45e4bd1c6acb88bebf6407d16205f567e62a3e")
//	if err != nil {
//	    log.Fatal(err)
//	}
package address

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// Size is the width of an address in bytes.
	Size = sha1.Size

	// Bits is the width of an address in bits.
	Bits = Size * 8

	// HexLength is the width of the canonical text form.
	HexLength = Size * 2
)

// ErrInvalidAddressFormat is returned when a string is not a canonical
// fixed-width hex address.
var ErrInvalidAddressFormat = errors.New("invalid address format")

// Address identifies a participant independently of its network location.
// The zero value is the null address.
type Address [Size]byte

// ForContent derives the address for content. The same content always
// yields the same address.
func ForContent(content []byte) Address {
	return Address(sha1.Sum(content))
}

// ForString derives the address for a string.
func ForString(content string) Address {
	return ForContent([]byte(content))
}

// FromString parses the canonical hex form of an address. Upper-case
// digits are accepted.
func FromString(s string) (Address, error) {
	if len(s) != HexLength {
		return Address{}, fmt.Errorf("%w: length %d, want %d", ErrInvalidAddressFormat, len(s), HexLength)
	}

	var a Address
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddressFormat, err)
	}
	return a, nil
}

// FromBytes copies an address out of b, which must be exactly Size bytes.
func FromBytes(b []byte) (Address, error) {
	if len(b) != Size {
		return Address{}, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidAddressFormat, len(b), Size)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// Null returns the address reserved for nodes without a routable identity.
func Null() Address {
	return Address{}
}

// Random returns a uniformly random address.
func Random() (Address, error) {
	var a Address
	if _, err := rand.Read(a[:]); err != nil {
		return Address{}, fmt.Errorf("failed to generate random address: %w", err)
	}
	return a, nil
}

// IsNull reports whether a is the null address.
func (a Address) IsNull() bool {
	return a == Address{}
}

// String returns the canonical lower-case hex form.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns a copy of the binary form.
func (a Address) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, a[:])
	return b
}

// Distance returns the XOR distance between a and other.
func (a Address) Distance(other Address) Address {
	var d Address
	for i := range a {
		d[i] = a[i] ^ other[i]
	}
	return d
}

// Less orders addresses as big-endian unsigned integers.
func (a Address) Less(other Address) bool {
	return bytes.Compare(a[:], other[:]) < 0
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := FromString(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
