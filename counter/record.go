// Package counter implements the counter program: a single uint32 stored in
// a program owned account, incremented in place on every invocation.
package counter

import (
	"fmt"

	"github.com/near/borsh-go"
)

// RecordSize is the encoded size of CounterAccount. The layout is fixed:
// offset 0, 4 bytes, little-endian count. No prefix, no version tag.
const RecordSize = 4

// CounterAccount is the state stored in a counter account
type CounterAccount struct {
	Count uint32 `json:"count"`
}

// Decode reads a CounterAccount from an account buffer.
// The buffer must hold exactly one record; all-zero bytes yield Count 0.
func Decode(data []byte) (CounterAccount, error) {
	var rec CounterAccount
	if len(data) < RecordSize {
		return rec, fmt.Errorf("%w: need %d bytes, have %d", ErrDecode, RecordSize, len(data))
	}
	if len(data) > RecordSize {
		return rec, fmt.Errorf("%w: %d trailing bytes", ErrDecode, len(data)-RecordSize)
	}
	if err := borsh.Deserialize(&rec, data); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return rec, nil
}

// Encode returns the fixed width encoding of the record
func (c CounterAccount) Encode() ([]byte, error) {
	data, err := borsh.Serialize(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if len(data) != RecordSize {
		return nil, fmt.Errorf("%w: encoded %d bytes", ErrEncode, len(data))
	}
	return data, nil
}

// EncodeTo writes the record into buf starting at offset 0.
// buf is never resized; bytes past RecordSize are left alone.
func (c CounterAccount) EncodeTo(buf []byte) error {
	if len(buf) < RecordSize {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, RecordSize, len(buf))
	}
	data, err := c.Encode()
	if err != nil {
		return err
	}
	copy(buf[:RecordSize], data)
	return nil
}
