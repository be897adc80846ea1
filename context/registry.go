// Package context opens account store backends by name. Backends register
// themselves from init, so importing context/memory or context/db is enough
// to make them available to the runtime.
package context

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
	"github.com/samber/lo"
)

// StoreType names an account store backend
type StoreType string

const (
	// MemoryStore keeps accounts in process memory
	MemoryStore StoreType = "memory"
	// DBStore keeps accounts in a SQLite file
	DBStore StoreType = "db"
)

// ParamDBPath is the DBStore parameter holding the database file path
const ParamDBPath = "db_path"

// ErrUnknownStore is returned when no backend is registered under a type
var ErrUnknownStore = errors.New("unknown account store")

// StoreConstructor opens an account store from its parameters
type StoreConstructor func(params map[string]any) (types.AccountStore, error)

type backend struct {
	open   StoreConstructor
	params []string
}

// Registry maps store types to their constructors
type Registry struct {
	mu       sync.RWMutex
	backends map[StoreType]backend
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{backends: make(map[StoreType]backend)}
}

// Register adds a backend under st. params names the string parameters the
// backend reads; Open hands it only those.
func (r *Registry) Register(st StoreType, open StoreConstructor, params ...string) error {
	if st == "" || open == nil {
		return fmt.Errorf("%w: store type and constructor are required", core.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.backends[st]; exists {
		return fmt.Errorf("account store %s already registered", st)
	}
	r.backends[st] = backend{open: open, params: params}
	return nil
}

// Open builds a store of type st, MemoryStore when st is empty. Parameters
// the backend did not declare are dropped; declared ones must be strings.
func (r *Registry) Open(st StoreType, params map[string]any) (types.AccountStore, error) {
	if st == "" {
		st = MemoryStore
	}
	r.mu.RLock()
	b, exists := r.backends[st]
	r.mu.RUnlock()
	if !exists {
		names := lo.Map(r.Types(), func(t StoreType, _ int) string { return string(t) })
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownStore, st, strings.Join(names, ", "))
	}

	accepted := make(map[string]any, len(b.params))
	for _, name := range b.params {
		v, ok := params[name]
		if !ok {
			continue
		}
		if _, isString := v.(string); !isString {
			return nil, fmt.Errorf("%w: %s parameter %s must be a string, got %T", core.ErrInvalidArgument, st, name, v)
		}
		accepted[name] = v
	}

	store, err := b.open(accepted)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s account store: %w", st, err)
	}
	slog.Debug("account store opened", "type", st, "params", accepted)
	return store, nil
}

// Types lists the registered store types in order
func (r *Registry) Types() []StoreType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := lo.Keys(r.backends)
	slices.Sort(out)
	return out
}

var defaultRegistry = NewRegistry()

// Register adds a backend to the process-wide registry
func Register(st StoreType, open StoreConstructor, params ...string) error {
	return defaultRegistry.Register(st, open, params...)
}

// Open builds a store from the process-wide registry
func Open(st StoreType, params map[string]any) (types.AccountStore, error) {
	return defaultRegistry.Open(st, params)
}

// Types lists the backends in the process-wide registry
func Types() []StoreType {
	return defaultRegistry.Types()
}
