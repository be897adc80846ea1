// Package api defines the interface between a host and the execution runtime
// that runs programs against stored accounts.
package api

import (
	"context"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
)

// VM executes program instructions against an account store
type VM interface {
	// RegisterProgram makes a program invocable under id
	RegisterProgram(id core.Address, factory types.ProgramFactory) error

	// CreateAccount provisions a zero-filled account of space bytes owned by owner
	CreateAccount(owner core.Address, space uint64) (core.Address, error)

	// Account returns a copy of a stored account
	Account(key core.Address) (*types.AccountInfo, error)

	// Execute runs a single instruction
	Execute(ctx context.Context, ins types.Instruction) error

	// ExecuteBatch runs instructions concurrently, serializing those that share accounts
	ExecuteBatch(ctx context.Context, ins []types.Instruction) error

	Close() error
}

// Limits bounds what a single account or instruction may use
type Limits struct {
	// MaxAccountSpace is the largest account allocation in bytes
	MaxAccountSpace uint64

	// MaxInstructionAccounts is the most accounts one instruction may reference
	MaxInstructionAccounts int
}

// DefaultLimits returns the default runtime limits
func DefaultLimits() Limits {
	return Limits{
		MaxAccountSpace:        10 * 1024 * 1024, // 10MB
		MaxInstructionAccounts: 64,
	}
}
