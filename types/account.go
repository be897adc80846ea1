// Package types contains the shared types exchanged between programs,
// account stores and the execution runtime
package types

import (
	"time"

	"github.com/govm-net/counter/core"
)

// AccountInfo is the handle a program receives for one account.
// Data is exclusively leased to the program for the duration of a call
// and must not be retained after the program returns.
type AccountInfo struct {
	Key        core.Address
	Owner      core.Address
	Data       []byte
	IsWritable bool
}

// AccountMeta references an account from an instruction
type AccountMeta struct {
	Key        core.Address `json:"key"`
	IsWritable bool         `json:"is_writable"`
}

// Instruction is a single invocation of a program
type Instruction struct {
	ProgramID core.Address  `json:"program_id"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data,omitempty"`
}

// Program is the entry point of an on-chain program.
// Implementations must not keep state between calls.
type Program interface {
	Process(programID core.Address, accounts []*AccountInfo, payload []byte) error
}

// ProgramFactory builds a fresh Program for every invocation
type ProgramFactory func() Program

// InstructionRecord is the persisted outcome of an executed instruction
type InstructionRecord struct {
	Hash       core.Hash
	ProgramID  core.Address
	Accounts   []core.Address
	Success    bool
	Error      string
	ExecutedAt time.Time
}

// AccountUpdate replaces Expected with Data in one account
type AccountUpdate struct {
	Key      core.Address
	Expected []byte
	Data     []byte
}

// AccountStore provisions and persists accounts
type AccountStore interface {
	// CreateAccount allocates a zero-filled account of space bytes owned by owner
	CreateAccount(key, owner core.Address, space uint64) (*AccountInfo, error)
	// GetAccount returns a copy of the stored account
	GetAccount(key core.Address) (*AccountInfo, error)
	// SetAccountData overwrites the account data; the length must match the allocation
	SetAccountData(key core.Address, data []byte) error
	// CommitAccounts applies every update or none. An account whose stored data
	// no longer equals Expected fails the commit with core.ErrStaleAccount.
	CommitAccounts(updates []AccountUpdate) error
	// ListAccounts returns every account owned by owner
	ListAccounts(owner core.Address) ([]*AccountInfo, error)

	// RecordInstruction stores the outcome of an executed instruction
	RecordInstruction(rec *InstructionRecord) error
	// Instructions returns the most recent records, newest first
	Instructions(limit int) ([]*InstructionRecord, error)

	Close() error
}
