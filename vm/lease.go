package vm

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/govm-net/counter/core"
	"github.com/samber/lo"
)

// accountLock is a context aware mutex; holding the lease means owning the channel slot
type accountLock struct {
	ch   chan struct{}
	refs int
}

// leaseTable hands out exclusive access to accounts
type leaseTable struct {
	mu    sync.Mutex
	locks map[core.Address]*accountLock
}

func newLeaseTable() *leaseTable {
	return &leaseTable{locks: make(map[core.Address]*accountLock)}
}

// Lease is exclusive access to a set of accounts, held until Release
type Lease struct {
	table    *leaseTable
	keys     []core.Address
	released bool
}

// Keys returns the leased accounts in acquisition order
func (l *Lease) Keys() []core.Address {
	return l.keys
}

func (t *leaseTable) ref(key core.Address) *accountLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		l = &accountLock{ch: make(chan struct{}, 1)}
		t.locks[key] = l
	}
	l.refs++
	return l
}

func (t *leaseTable) unref(key core.Address, l *accountLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, key)
	}
}

// Acquire locks every key. Keys are de-duplicated and taken in byte order so
// two overlapping leases can never wait on each other.
func (t *leaseTable) Acquire(ctx context.Context, keys []core.Address) (*Lease, error) {
	keys = lo.Uniq(keys)
	slices.SortFunc(keys, func(a, b core.Address) int {
		return bytes.Compare(a[:], b[:])
	})

	lease := &Lease{table: t}
	for _, key := range keys {
		l := t.ref(key)
		select {
		case l.ch <- struct{}{}:
			lease.keys = append(lease.keys, key)
		case <-ctx.Done():
			t.unref(key, l)
			lease.Release()
			return nil, ctx.Err()
		}
	}
	return lease, nil
}

// Release gives the accounts back. Calling it twice is a no-op.
func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	for i := len(l.keys) - 1; i >= 0; i-- {
		key := l.keys[i]
		l.table.mu.Lock()
		al := l.table.locks[key]
		l.table.mu.Unlock()
		<-al.ch
		l.table.unref(key, al)
	}
}
