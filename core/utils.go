package core

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// GetHash calculates the SHA-256 hash of data
func GetHash(data []byte) Hash {
	return sha256.Sum256(data)
}

// NewAccountAddress generates a fresh account identity from an ed25519 key pair.
// The private key is discarded; accounts are never signers here.
func NewAccountAddress() (Address, error) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return ZeroAddress, err
	}
	var addr Address
	copy(addr[:], pub)
	return addr, nil
}

// InstructionHash derives the identifier of an executed instruction. The
// execution time and nonce keep repeated identical instructions apart.
func InstructionHash(program Address, accounts []Address, data []byte, executedAt time.Time, nonce uint64) Hash {
	buf := make([]byte, 0, AddressLength*(len(accounts)+1)+len(data)+16)
	buf = append(buf, program[:]...)
	for _, acc := range accounts {
		buf = append(buf, acc[:]...)
	}
	buf = append(buf, data...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(executedAt.UnixNano()))
	buf = binary.LittleEndian.AppendUint64(buf, nonce)
	return GetHash(buf)
}
