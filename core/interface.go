// Package core defines the identities and shared errors used by programs,
// account stores and the execution runtime.
package core

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// AddressLength is the byte length of program and account identities
const AddressLength = 32

// Address identifies a program or an account
type Address [AddressLength]byte

// Hash is a sha256 digest
type Hash [32]byte

var ZeroAddress = Address{}
var ZeroHash = Hash{}

// String returns the base58 form of the address
func (addr Address) String() string {
	return base58.Encode(addr[:])
}

// IsZero reports whether the address is all zero bytes
func (addr Address) IsZero() bool {
	return addr == ZeroAddress
}

// AddressFromString parses a base58 encoded address
func AddressFromString(str string) (Address, error) {
	var addr Address
	str = strings.TrimSpace(str)
	if str == "" {
		return addr, fmt.Errorf("%w: empty address", ErrInvalidArgument)
	}
	raw := base58.Decode(str)
	if len(raw) != AddressLength {
		return addr, fmt.Errorf("%w: address %q decodes to %d bytes", ErrInvalidArgument, str, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// MustAddressFromString is AddressFromString that panics on malformed input.
// Intended for package level constants.
func MustAddressFromString(str string) Address {
	addr, err := AddressFromString(str)
	if err != nil {
		panic(err)
	}
	return addr
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func HashFromString(str string) Hash {
	str = strings.TrimPrefix(str, "0x")
	h, err := hex.DecodeString(str)
	if err != nil {
		return ZeroHash
	}
	var out Hash
	copy(out[:], h)
	return out
}
