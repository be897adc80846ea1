package counter

import (
	"fmt"
	"math"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
)

// ProgramID is the identity the counter program is registered under
var ProgramID = core.MustAddressFromString("3wGUG3qnLtCZFg3ukqeQXNhVYjrr3Jai4RnzEDyqjphc")

// OverflowPolicy decides what happens when the count is already math.MaxUint32
type OverflowPolicy int

const (
	// OverflowWrap wraps the count to zero
	OverflowWrap OverflowPolicy = iota
	// OverflowError fails the increment with ErrOverflow
	OverflowError
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowWrap:
		return "wrap"
	case OverflowError:
		return "error"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy maps "wrap" and "error" to a policy
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "wrap":
		return OverflowWrap, nil
	case "error":
		return OverflowError, nil
	default:
		return OverflowWrap, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Incrementer applies one increment to the first supplied account
type Incrementer interface {
	ApplyIncrement(programID core.Address, accounts []*types.AccountInfo, payload []byte) error
}

// Processor is the counter program entry point
type Processor struct {
	overflow OverflowPolicy
}

var (
	_ Incrementer   = (*Processor)(nil)
	_ types.Program = (*Processor)(nil)
)

// Option configures a Processor
type Option func(*Processor)

// WithOverflowPolicy sets the overflow policy
func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(pr *Processor) {
		pr.overflow = p
	}
}

// WithOverflowCheck makes increments past math.MaxUint32 fail
func WithOverflowCheck() Option {
	return WithOverflowPolicy(OverflowError)
}

// NewProcessor creates a counter processor
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{overflow: OverflowWrap}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Factory returns a ProgramFactory building a fresh processor per invocation
func Factory(opts ...Option) types.ProgramFactory {
	return func() types.Program {
		return NewProcessor(opts...)
	}
}

// Process implements types.Program
func (p *Processor) Process(programID core.Address, accounts []*types.AccountInfo, payload []byte) error {
	return p.ApplyIncrement(programID, accounts, payload)
}

// ApplyIncrement adds one to the counter stored in accounts[0].
// The owner check runs before anything is decoded, and nothing is written
// unless every step succeeds. payload is ignored.
func (p *Processor) ApplyIncrement(programID core.Address, accounts []*types.AccountInfo, _ []byte) error {
	if len(accounts) == 0 || accounts[0] == nil {
		return ErrMissingAccount
	}
	account := accounts[0]

	if account.Owner != programID {
		return fmt.Errorf("%w: account %s owned by %s", ErrIncorrectOwner, account.Key, account.Owner)
	}

	counter, err := Decode(account.Data)
	if err != nil {
		return err
	}

	if counter.Count == math.MaxUint32 && p.overflow == OverflowError {
		return fmt.Errorf("%w: account %s", ErrOverflow, account.Key)
	}
	counter.Count++

	return counter.EncodeTo(account.Data)
}
