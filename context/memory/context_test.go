package memory

import (
	"testing"
	"time"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	program = core.Address{0xc0, 0xde}
	other   = core.Address{0xbe, 0xef}
)

func setupTestStore(t *testing.T) *accountStore {
	store, err := NewAccountStore(nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store.(*accountStore)
}

func TestCreateAndGetAccount(t *testing.T) {
	store := setupTestStore(t)
	key := core.Address{1}

	acc, err := store.CreateAccount(key, program, 4)
	require.NoError(t, err)
	assert.Equal(t, key, acc.Key)
	assert.Equal(t, program, acc.Owner)
	assert.Equal(t, []byte{0, 0, 0, 0}, acc.Data)

	// duplicate key
	_, err = store.CreateAccount(key, program, 4)
	assert.ErrorIs(t, err, core.ErrAccountExists)

	got, err := store.GetAccount(key)
	require.NoError(t, err)
	assert.Equal(t, acc, got)

	_, err = store.GetAccount(core.Address{2})
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}

func TestAccountCopies(t *testing.T) {
	store := setupTestStore(t)
	key := core.Address{1}
	_, err := store.CreateAccount(key, program, 4)
	require.NoError(t, err)

	acc, err := store.GetAccount(key)
	require.NoError(t, err)
	acc.Data[0] = 9

	// mutating a loaded copy must not leak into the store
	stored, err := store.GetAccount(key)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, stored.Data)
}

func TestSetAccountData(t *testing.T) {
	store := setupTestStore(t)
	key := core.Address{1}
	_, err := store.CreateAccount(key, program, 4)
	require.NoError(t, err)

	require.NoError(t, store.SetAccountData(key, []byte{1, 2, 3, 4}))
	acc, err := store.GetAccount(key)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, acc.Data)

	assert.ErrorIs(t, store.SetAccountData(key, []byte{1, 2}), core.ErrDataSizeMismatch)
	assert.ErrorIs(t, store.SetAccountData(core.Address{2}, []byte{1, 2, 3, 4}), core.ErrAccountNotFound)
}

func TestCommitAccounts(t *testing.T) {
	store := setupTestStore(t)
	first, second := core.Address{1}, core.Address{2}
	for _, key := range []core.Address{first, second} {
		_, err := store.CreateAccount(key, program, 4)
		require.NoError(t, err)
	}

	require.NoError(t, store.CommitAccounts([]types.AccountUpdate{
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
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.CommitAccounts([]types.AccountUpdate{
				{Key: first, Expected: []byte{1, 0, 0, 0}, Data: []byte{7, 0, 0, 0}},
				tt.update,
			})
			assert.ErrorIs(t, err, tt.wantErr)

			acc, err := store.GetAccount(first)
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 0, 0, 0}, acc.Data)
		})
	}
}

func TestListAccounts(t *testing.T) {
	store := setupTestStore(t)
	for i := byte(1); i <= 3; i++ {
		_, err := store.CreateAccount(core.Address{i}, program, 4)
		require.NoError(t, err)
	}
	_, err := store.CreateAccount(core.Address{9}, other, 4)
	require.NoError(t, err)

	owned, err := store.ListAccounts(program)
	require.NoError(t, err)
	assert.Len(t, owned, 3)

	owned, err = store.ListAccounts(other)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, core.Address{9}, owned[0].Key)
}

func TestInstructions(t *testing.T) {
	store := setupTestStore(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordInstruction(&types.InstructionRecord{
			Hash:       core.GetHash([]byte{byte(i)}),
			ProgramID:  program,
			Accounts:   []core.Address{{byte(i)}},
			Success:    i != 1,
			ExecutedAt: time.Unix(int64(i), 0),
		}))
	}

	recs, err := store.Instructions(2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, core.Address{2}, recs[0].Accounts[0])
	assert.False(t, recs[1].Success)

	recs, err = store.Instructions(0)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}
