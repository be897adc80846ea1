package vm

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/govm-net/counter/api"
	acctctx "github.com/govm-net/counter/context"
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var _ api.VM = (*Engine)(nil)

// defaultCommitRetries bounds how often an instruction is rerun after another
// engine changed one of its accounts in a shared store
const defaultCommitRetries = 32

// Engine runs program instructions against an account store
type Engine struct {
	config  *Config
	store   types.AccountStore
	leases  *leaseTable
	metrics *metrics
	nonce   atomic.Uint64 // randomly seeded so separate runs never share hashes

	mu       sync.RWMutex
	programs map[core.Address]types.ProgramFactory
}

// Config represents engine configuration
type Config struct {
	ContextType   string                // Account store type
	ContextParams map[string]any        // Account store parameters
	Workers       int                   // Concurrent instructions in ExecuteBatch, 0 means GOMAXPROCS
	Limits        api.Limits            // Zero fields take their api.DefaultLimits value
	CommitRetries int                   // Reruns after a stale account, 0 means defaultCommitRetries
	Registry      prometheus.Registerer // Metrics registry, nil means a private registry
}

// programError marks a failure returned by the program itself
type programError struct {
	program core.Address
	err     error
}

func (e *programError) Error() string {
	return fmt.Sprintf("program %s: %v", e.program, e.err)
}

func (e *programError) Unwrap() error {
	return e.err
}

// NewEngine creates a new execution engine
func NewEngine(config *Config) (*Engine, error) {
	// Ensure configuration is valid
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg := *config
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	defaults := api.DefaultLimits()
	if cfg.Limits.MaxAccountSpace == 0 {
		cfg.Limits.MaxAccountSpace = defaults.MaxAccountSpace
	}
	if cfg.Limits.MaxInstructionAccounts == 0 {
		cfg.Limits.MaxInstructionAccounts = defaults.MaxInstructionAccounts
	}
	if cfg.CommitRetries == 0 {
		cfg.CommitRetries = defaultCommitRetries
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	metrics, err := newMetrics(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("failed to seed instruction nonce: %w", err)
	}

	store, err := acctctx.Open(acctctx.StoreType(cfg.ContextType), cfg.ContextParams)
	if err != nil {
		return nil, fmt.Errorf("failed to get account store: %w", err)
	}

	e := &Engine{
		config:   &cfg,
		store:    store,
		leases:   newLeaseTable(),
		metrics:  metrics,
		programs: make(map[core.Address]types.ProgramFactory),
	}
	e.nonce.Store(binary.LittleEndian.Uint64(seed[:]))
	return e, nil
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if config.Workers < 0 {
		return fmt.Errorf("invalid worker count: %d", config.Workers)
	}

	if config.Limits.MaxInstructionAccounts < 0 {
		return fmt.Errorf("invalid max instruction accounts: %d", config.Limits.MaxInstructionAccounts)
	}

	if config.CommitRetries < 0 {
		return fmt.Errorf("invalid commit retries: %d", config.CommitRetries)
	}

	return nil
}

// WithContext replaces the account store
func (e *Engine) WithContext(store types.AccountStore) *Engine {
	e.store = store
	return e
}

// GetContext returns the account store
func (e *Engine) GetContext() types.AccountStore {
	return e.store
}

// RegisterProgram makes a program invocable under id
func (e *Engine) RegisterProgram(id core.Address, factory types.ProgramFactory) error {
	if factory == nil {
		return fmt.Errorf("%w: nil program factory", core.ErrInvalidArgument)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.programs[id]; exists {
		return fmt.Errorf("program %s already registered", id)
	}
	e.programs[id] = factory
	slog.Info("program registered", "program", id)
	return nil
}

func (e *Engine) program(id core.Address) (types.ProgramFactory, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	factory, ok := e.programs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrProgramNotFound, id)
	}
	return factory, nil
}

// CreateAccount provisions an account under a freshly generated key
func (e *Engine) CreateAccount(owner core.Address, space uint64) (core.Address, error) {
	key, err := core.NewAccountAddress()
	if err != nil {
		return core.ZeroAddress, fmt.Errorf("failed to generate account key: %w", err)
	}
	if err := e.CreateAccountWithKey(key, owner, space); err != nil {
		return core.ZeroAddress, err
	}
	return key, nil
}

// CreateAccountWithKey provisions an account under key
func (e *Engine) CreateAccountWithKey(key, owner core.Address, space uint64) error {
	if space > e.config.Limits.MaxAccountSpace {
		return fmt.Errorf("%w: space %d exceeds limit %d", core.ErrInvalidArgument, space, e.config.Limits.MaxAccountSpace)
	}
	if _, err := e.store.CreateAccount(key, owner, space); err != nil {
		return err
	}
	slog.Info("account created", "account", key, "owner", owner, "space", space)
	return nil
}

// Account returns a copy of a stored account
func (e *Engine) Account(key core.Address) (*types.AccountInfo, error) {
	return e.store.GetAccount(key)
}

// loadedAccount is an account checked out for one instruction
type loadedAccount struct {
	info     *types.AccountInfo
	original []byte
}

// Execute runs one instruction. Every referenced account is leased for the
// whole call; account data reaches the store only if the program succeeds.
// The lease is local to this engine, so when another engine sharing the store
// commits first the instruction is rerun on the fresh account data.
func (e *Engine) Execute(ctx context.Context, ins types.Instruction) (err error) {
	keys := lo.Map(ins.Accounts, func(m types.AccountMeta, _ int) core.Address {
		return m.Key
	})
	defer func() {
		e.finish(ins, keys, err)
	}()

	if len(ins.Accounts) > e.config.Limits.MaxInstructionAccounts {
		return fmt.Errorf("%w: %d accounts exceeds limit %d", core.ErrInvalidArgument, len(ins.Accounts), e.config.Limits.MaxInstructionAccounts)
	}

	factory, err := e.program(ins.ProgramID)
	if err != nil {
		return err
	}

	start := time.Now()
	lease, err := e.leases.Acquire(ctx, keys)
	if err != nil {
		return err
	}
	defer lease.Release()
	e.metrics.recordLeaseWait(time.Since(start).Seconds())

	for attempt := 0; ; attempt++ {
		err = e.run(factory, ins)
		if !errors.Is(err, core.ErrStaleAccount) || attempt >= e.config.CommitRetries {
			return err
		}
		e.metrics.recordConflict()
		slog.Debug("account changed by another writer, rerunning", "program", ins.ProgramID, "attempt", attempt+1)
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
	}
}

// run loads the accounts, invokes a fresh program and commits its writes
func (e *Engine) run(factory types.ProgramFactory, ins types.Instruction) error {
	accounts, loaded, err := e.loadAccounts(ins.Accounts)
	if err != nil {
		return err
	}

	if err := factory().Process(ins.ProgramID, accounts, ins.Data); err != nil {
		return &programError{program: ins.ProgramID, err: err}
	}

	return e.commit(loaded)
}

// loadAccounts reads the referenced accounts. A key listed twice maps to the
// same handle and is writable if any reference is.
func (e *Engine) loadAccounts(metas []types.AccountMeta) ([]*types.AccountInfo, []*loadedAccount, error) {
	byKey := make(map[core.Address]*loadedAccount, len(metas))
	loaded := make([]*loadedAccount, 0, len(metas))
	infos := make([]*types.AccountInfo, 0, len(metas))
	for _, meta := range metas {
		la, ok := byKey[meta.Key]
		if !ok {
			acc, err := e.store.GetAccount(meta.Key)
			if err != nil {
				return nil, nil, err
			}
			acc.IsWritable = false
			la = &loadedAccount{info: acc, original: bytes.Clone(acc.Data)}
			byKey[meta.Key] = la
			loaded = append(loaded, la)
		}
		la.info.IsWritable = la.info.IsWritable || meta.IsWritable
		infos = append(infos, la.info)
	}
	return infos, loaded, nil
}

// commit validates every account before writing any of them
func (e *Engine) commit(loaded []*loadedAccount) error {
	changed := make([]types.AccountUpdate, 0, len(loaded))
	for _, la := range loaded {
		if len(la.info.Data) != len(la.original) {
			return fmt.Errorf("%w: account %s resized from %d to %d bytes",
				core.ErrDataSizeMismatch, la.info.Key, len(la.original), len(la.info.Data))
		}
		if bytes.Equal(la.info.Data, la.original) {
			continue
		}
		if !la.info.IsWritable {
			return fmt.Errorf("%w: %s", core.ErrAccountNotWritable, la.info.Key)
		}
		changed = append(changed, types.AccountUpdate{
			Key:      la.info.Key,
			Expected: la.original,
			Data:     la.info.Data,
		})
	}
	if len(changed) == 0 {
		return nil
	}

	if err := e.store.CommitAccounts(changed); err != nil {
		return fmt.Errorf("failed to store accounts: %w", err)
	}
	return nil
}

func (e *Engine) finish(ins types.Instruction, keys []core.Address, err error) {
	now := time.Now()
	rec := &types.InstructionRecord{
		Hash:       core.InstructionHash(ins.ProgramID, keys, ins.Data, now, e.nonce.Add(1)),
		ProgramID:  ins.ProgramID,
		Accounts:   keys,
		Success:    err == nil,
		ExecutedAt: now,
	}
	if err != nil {
		rec.Error = err.Error()
		e.metrics.recordFailed(failureReason(err))
		slog.Warn("instruction failed", "program", ins.ProgramID, "hash", rec.Hash, "error", err)
	} else {
		e.metrics.recordExecuted()
		slog.Info("instruction executed", "program", ins.ProgramID, "hash", rec.Hash, "accounts", len(keys))
	}

	if rerr := e.store.RecordInstruction(rec); rerr != nil {
		slog.Error("failed to record instruction", "hash", rec.Hash, "error", rerr)
	}
}

func failureReason(err error) string {
	var pe *programError
	switch {
	case errors.As(err, &pe):
		return reasonProgram
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return reasonCanceled
	case errors.Is(err, core.ErrProgramNotFound):
		return reasonProgramNotFound
	case errors.Is(err, core.ErrAccountNotFound):
		return reasonAccountNotFound
	case errors.Is(err, core.ErrAccountNotWritable), errors.Is(err, core.ErrDataSizeMismatch):
		return reasonRuntime
	case errors.Is(err, core.ErrStaleAccount):
		return reasonConflict
	case errors.Is(err, core.ErrInvalidArgument):
		return reasonInvalid
	default:
		return reasonStore
	}
}

// ExecuteBatch runs instructions on at most Workers goroutines and returns the
// first error. Instructions touching the same account run one at a time.
func (e *Engine) ExecuteBatch(ctx context.Context, instructions []types.Instruction) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	for _, ins := range instructions {
		ins := ins
		g.Go(func() error {
			return e.Execute(gctx, ins)
		})
	}
	return g.Wait()
}

// Close closes the engine
func (e *Engine) Close() error {
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("failed to close account store: %w", err)
	}
	return nil
}
