package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/govm-net/counter/context"
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	program = core.Address{0xc0, 0xde}
	other   = core.Address{0xbe, 0xef}
)

func setupTestDB(t *testing.T) *Context {
	// 使用临时目录作为测试数据库
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewContext(map[string]any{
		context.ParamDBPath: dbPath,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	return store.(*Context)
}

func TestCreateAndGetAccount(t *testing.T) {
	ctx := setupTestDB(t)
	key := core.Address{1}

	acc, err := ctx.CreateAccount(key, program, 4)
	require.NoError(t, err)
	assert.Equal(t, key, acc.Key)
	assert.Equal(t, program, acc.Owner)
	assert.Equal(t, []byte{0, 0, 0, 0}, acc.Data)

	_, err = ctx.CreateAccount(key, other, 4)
	assert.ErrorIs(t, err, core.ErrAccountExists)

	got, err := ctx.GetAccount(key)
	require.NoError(t, err)
	assert.Equal(t, program, got.Owner)
	assert.Equal(t, []byte{0, 0, 0, 0}, got.Data)

	_, err = ctx.GetAccount(core.Address{2})
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}

func TestSetAccountData(t *testing.T) {
	ctx := setupTestDB(t)
	key := core.Address{1}
	_, err := ctx.CreateAccount(key, program, 4)
	require.NoError(t, err)

	require.NoError(t, ctx.SetAccountData(key, []byte{5, 0, 0, 0}))
	acc, err := ctx.GetAccount(key)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 0, 0, 0}, acc.Data)

	// size is fixed at allocation
	assert.ErrorIs(t, ctx.SetAccountData(key, []byte{5, 0, 0, 0, 0}), core.ErrDataSizeMismatch)
	assert.ErrorIs(t, ctx.SetAccountData(core.Address{2}, []byte{1, 0, 0, 0}), core.ErrAccountNotFound)

	acc, err = ctx.GetAccount(key)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 0, 0, 0}, acc.Data)
}

func TestCommitAccounts(t *testing.T) {
	ctx := setupTestDB(t)
	first, second := core.Address{1}, core.Address{2}
	for _, key := range []core.Address{first, second} {
		_, err := ctx.CreateAccount(key, program, 4)
		require.NoError(t, err)
	}

	require.NoError(t, ctx.CommitAccounts([]types.AccountUpdate{
		{Key: first, Expected: []byte{0, 0, 0, 0}, Data: []byte{1, 0, 0, 0}},
		{Key: second, Expected: []byte{0, 0, 0, 0}, Data: []byte{2, 0, 0, 0}},
	}))

	tests := []struct {
		name    string
		update  types.AccountUpdate
		wantErr error
	}{
		{"stale", types.AccountUpdate{Key: second, Expected: []byte{0, 0, 0, 0}, Data: []byte{9, 0, 0, 0}}, core.ErrStaleAccount},
		{"missing", types.AccountUpdate{Key: core.Address{3}, Expected: []byte{0, 0, 0, 0}, Data: []byte{9, 0, 0, 0}}, core.ErrAccountNotFound},
		{"resize", types.AccountUpdate{Key: second, Expected: []byte{2, 0, 0, 0}, Data: []byte{9, 0, 0, 0, 0}}, core.ErrDataSizeMismatch},
		{"wrong space", types.AccountUpdate{Key: second, Expected: []byte{2, 0, 0}, Data: []byte{9, 0, 0}}, core.ErrDataSizeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// the valid first update must be rolled back with the failing one
			err := ctx.CommitAccounts([]types.AccountUpdate{
				{Key: first, Expected: []byte{1, 0, 0, 0}, Data: []byte{7, 0, 0, 0}},
				tt.update,
			})
			assert.ErrorIs(t, err, tt.wantErr)

			acc, err := ctx.GetAccount(first)
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 0, 0, 0}, acc.Data)
			acc, err = ctx.GetAccount(second)
			require.NoError(t, err)
			assert.Equal(t, []byte{2, 0, 0, 0}, acc.Data)
		})
	}
}

func TestCommitAccountsAcrossHandles(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	key := core.Address{4}
	open := func() *Context {
		store, err := NewContext(map[string]any{context.ParamDBPath: dbPath})
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store.(*Context)
	}
	a, b := open(), open()
	_, err := a.CreateAccount(key, program, 4)
	require.NoError(t, err)

	// both handles read 0, only the first conditional write wins
	update := types.AccountUpdate{Key: key, Expected: []byte{0, 0, 0, 0}, Data: []byte{1, 0, 0, 0}}
	require.NoError(t, a.CommitAccounts([]types.AccountUpdate{update}))
	assert.ErrorIs(t, b.CommitAccounts([]types.AccountUpdate{update}), core.ErrStaleAccount)

	update = types.AccountUpdate{Key: key, Expected: []byte{1, 0, 0, 0}, Data: []byte{2, 0, 0, 0}}
	require.NoError(t, b.CommitAccounts([]types.AccountUpdate{update}))
	acc, err := a.GetAccount(key)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0}, acc.Data)
}

func TestListAccounts(t *testing.T) {
	ctx := setupTestDB(t)
	for i := byte(1); i <= 3; i++ {
		_, err := ctx.CreateAccount(core.Address{i}, program, 4)
		require.NoError(t, err)
	}
	_, err := ctx.CreateAccount(core.Address{9}, other, 8)
	require.NoError(t, err)

	owned, err := ctx.ListAccounts(program)
	require.NoError(t, err)
	assert.Len(t, owned, 3)

	owned, err = ctx.ListAccounts(other)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Len(t, owned[0].Data, 8)
}

func TestInstructions(t *testing.T) {
	ctx := setupTestDB(t)
	now := time.Now().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		rec := &types.InstructionRecord{
			Hash:       core.GetHash([]byte{byte(i)}),
			ProgramID:  program,
			Accounts:   []core.Address{{byte(i + 1)}},
			Success:    i != 1,
			ExecutedAt: now.Add(time.Duration(i) * time.Second),
		}
		if !rec.Success {
			rec.Error = "counter account does not have the correct program id"
		}
		require.NoError(t, ctx.RecordInstruction(rec))
	}

	recs, err := ctx.Instructions(2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, core.GetHash([]byte{2}), recs[0].Hash)
	assert.Equal(t, []core.Address{{3}}, recs[0].Accounts)
	assert.Equal(t, program, recs[0].ProgramID)
	assert.False(t, recs[1].Success)
	assert.NotEmpty(t, recs[1].Error)

	recs, err = ctx.Instructions(0)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestReopenKeepsAccounts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	key := core.Address{7}

	store, err := NewContext(map[string]any{context.ParamDBPath: dbPath})
	require.NoError(t, err)
	_, err = store.CreateAccount(key, program, 4)
	require.NoError(t, err)
	require.NoError(t, store.SetAccountData(key, []byte{3, 0, 0, 0}))
	require.NoError(t, store.Close())

	store, err = NewContext(map[string]any{context.ParamDBPath: dbPath})
	require.NoError(t, err)
	defer store.Close()

	acc, err := store.GetAccount(key)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 0, 0, 0}, acc.Data)
}
