package memory

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/govm-net/counter/context"
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
)

// accountStore keeps accounts in process memory
type accountStore struct {
	accounts     map[core.Address]*types.AccountInfo
	instructions []*types.InstructionRecord
	mu           sync.Mutex
}

func init() {
	context.Register(context.MemoryStore, NewAccountStore)
}

// NewAccountStore creates an empty in-memory account store. params are unused.
func NewAccountStore(params map[string]any) (types.AccountStore, error) {
	return &accountStore{
		accounts: make(map[core.Address]*types.AccountInfo),
	}, nil
}

func cloneAccount(acc *types.AccountInfo) *types.AccountInfo {
	out := *acc
	out.Data = append([]byte(nil), acc.Data...)
	return &out
}

// CreateAccount allocates a zero-filled account
func (s *accountStore) CreateAccount(key, owner core.Address, space uint64) (*types.AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[key]; exists {
		return nil, fmt.Errorf("%w: %s", core.ErrAccountExists, key)
	}

	acc := &types.AccountInfo{
		Key:        key,
		Owner:      owner,
		Data:       make([]byte, space),
		IsWritable: true,
	}
	s.accounts[key] = acc
	slog.Debug("account created", "account", key, "owner", owner, "space", space)
	return cloneAccount(acc), nil
}

// GetAccount returns a copy of the account
func (s *accountStore) GetAccount(key core.Address) (*types.AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, exists := s.accounts[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrAccountNotFound, key)
	}
	return cloneAccount(acc), nil
}

// SetAccountData overwrites the account data in place
func (s *accountStore) SetAccountData(key core.Address, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, exists := s.accounts[key]
	if !exists {
		return fmt.Errorf("%w: %s", core.ErrAccountNotFound, key)
	}
	if len(data) != len(acc.Data) {
		return fmt.Errorf("%w: have %d bytes, got %d", core.ErrDataSizeMismatch, len(acc.Data), len(data))
	}
	copy(acc.Data, data)
	return nil
}

// CommitAccounts checks every update before applying any of them
func (s *accountStore) CommitAccounts(updates []types.AccountUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		acc, exists := s.accounts[u.Key]
		if !exists {
			return fmt.Errorf("%w: %s", core.ErrAccountNotFound, u.Key)
		}
		if len(u.Data) != len(acc.Data) {
			return fmt.Errorf("%w: have %d bytes, got %d", core.ErrDataSizeMismatch, len(acc.Data), len(u.Data))
		}
		if !bytes.Equal(acc.Data, u.Expected) {
			return fmt.Errorf("%w: %s", core.ErrStaleAccount, u.Key)
		}
	}
	for _, u := range updates {
		copy(s.accounts[u.Key].Data, u.Data)
	}
	return nil
}

// ListAccounts returns the accounts owned by owner ordered by key
func (s *accountStore) ListAccounts(owner core.Address) ([]*types.AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.AccountInfo
	for _, acc := range s.accounts {
		if acc.Owner == owner {
			out = append(out, cloneAccount(acc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out, nil
}

// RecordInstruction appends an instruction record
func (s *accountStore) RecordInstruction(rec *types.InstructionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	cp.Accounts = append([]core.Address(nil), rec.Accounts...)
	s.instructions = append(s.instructions, &cp)
	return nil
}

// Instructions returns up to limit records, newest first. limit <= 0 returns all.
func (s *accountStore) Instructions(limit int) ([]*types.InstructionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.instructions)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*types.InstructionRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.instructions[i])
	}
	return out, nil
}

func (s *accountStore) Close() error {
	return nil
}
