package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/govm-net/counter/context"
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultDBPath = "./sqlite.db"
	// milliseconds a connection waits on another process holding the write lock
	busyTimeout = 5000
)

// DBAccount represents an account in database
type DBAccount struct {
	gorm.Model
	Key   string `gorm:"column:account_key;not null;unique;index;size:44"`
	Owner string `gorm:"column:owner_address;not null;index;size:44"`
	Space uint64 `gorm:"column:space;not null"`
	Data  []byte `gorm:"column:account_data;type:blob"`
}

// TableName specifies the table name for DBAccount
func (DBAccount) TableName() string {
	return "accounts"
}

// DBInstruction represents an executed instruction in database
type DBInstruction struct {
	gorm.Model
	Hash      string `gorm:"column:instruction_hash;not null;index;size:64"`
	ProgramID string `gorm:"column:program_id;not null;index;size:44"`
	Accounts  []byte `gorm:"column:accounts;type:blob;not null"` // JSON encoded base58 keys
	Success   bool   `gorm:"column:success;not null"`
	Error     string `gorm:"column:error_message"`
}

// TableName specifies the table name for DBInstruction
func (DBInstruction) TableName() string {
	return "instructions"
}

// Context implements the AccountStore interface using SQLite with GORM
type Context struct {
	db *gorm.DB
}

func init() {
	context.Register(context.DBStore, NewContext, context.ParamDBPath)
}

// NewContext creates a new SQLite-backed account store using GORM.
// params[context.ParamDBPath] selects the database file.
func NewContext(params map[string]any) (types.AccountStore, error) {
	if params == nil {
		params = make(map[string]any)
	}
	dbPath := defaultDBPath
	if path, ok := params[context.ParamDBPath].(string); ok && path != "" {
		dbPath = path
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d", dbPath, busyTimeout)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	ctx := &Context{db: db}
	if err := ctx.initDB(); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (c *Context) initDB() error {
	// Auto migrate the schemas with indexes
	if err := c.db.AutoMigrate(&DBAccount{}, &DBInstruction{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func toAccountInfo(dbAcc *DBAccount) (*types.AccountInfo, error) {
	key, err := core.AddressFromString(dbAcc.Key)
	if err != nil {
		return nil, fmt.Errorf("corrupt account key: %w", err)
	}
	owner, err := core.AddressFromString(dbAcc.Owner)
	if err != nil {
		return nil, fmt.Errorf("corrupt owner of %s: %w", dbAcc.Key, err)
	}
	data := make([]byte, dbAcc.Space)
	copy(data, dbAcc.Data)
	return &types.AccountInfo{
		Key:        key,
		Owner:      owner,
		Data:       data,
		IsWritable: true,
	}, nil
}

// CreateAccount implements types.AccountStore
func (c *Context) CreateAccount(key, owner core.Address, space uint64) (*types.AccountInfo, error) {
	dbAcc := &DBAccount{
		Key:   key.String(),
		Owner: owner.String(),
		Space: space,
		Data:  make([]byte, space),
	}

	err := c.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&DBAccount{}).Where("account_key = ?", dbAcc.Key).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check account: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", core.ErrAccountExists, key)
		}
		if err := tx.Create(dbAcc).Error; err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("account created", "account", key, "owner", owner, "space", space)
	return toAccountInfo(dbAcc)
}

// GetAccount implements types.AccountStore
func (c *Context) GetAccount(key core.Address) (*types.AccountInfo, error) {
	var dbAcc DBAccount
	result := c.db.Where("account_key = ?", key.String()).First(&dbAcc)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", core.ErrAccountNotFound, key)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get account: %w", result.Error)
	}
	return toAccountInfo(&dbAcc)
}

// SetAccountData implements types.AccountStore
func (c *Context) SetAccountData(key core.Address, data []byte) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		var dbAcc DBAccount
		result := tx.Where("account_key = ?", key.String()).First(&dbAcc)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", core.ErrAccountNotFound, key)
		}
		if result.Error != nil {
			return fmt.Errorf("failed to get account: %w", result.Error)
		}
		if uint64(len(data)) != dbAcc.Space {
			return fmt.Errorf("%w: have %d bytes, got %d", core.ErrDataSizeMismatch, dbAcc.Space, len(data))
		}

		if err := tx.Model(&dbAcc).Update("account_data", data).Error; err != nil {
			return fmt.Errorf("failed to update account data: %w", err)
		}
		return nil
	})
}

// CommitAccounts implements types.AccountStore. Every row is rewritten only
// while it still holds the expected bytes, so engines sharing one database
// file cannot overwrite each other's results.
func (c *Context) CommitAccounts(updates []types.AccountUpdate) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if len(u.Data) != len(u.Expected) {
				return fmt.Errorf("%w: expected %d bytes, got %d", core.ErrDataSizeMismatch, len(u.Expected), len(u.Data))
			}
			result := tx.Model(&DBAccount{}).
				Where("account_key = ? AND space = ? AND account_data = ?", u.Key.String(), len(u.Data), u.Expected).
				Update("account_data", u.Data)
			if result.Error != nil {
				return fmt.Errorf("failed to update account data: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return commitConflict(tx, u)
			}
		}
		return nil
	})
}

// commitConflict explains why a conditional update matched no row
func commitConflict(tx *gorm.DB, u types.AccountUpdate) error {
	var dbAcc DBAccount
	result := tx.Where("account_key = ?", u.Key.String()).First(&dbAcc)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", core.ErrAccountNotFound, u.Key)
	}
	if result.Error != nil {
		return fmt.Errorf("failed to get account: %w", result.Error)
	}
	if uint64(len(u.Data)) != dbAcc.Space {
		return fmt.Errorf("%w: have %d bytes, got %d", core.ErrDataSizeMismatch, dbAcc.Space, len(u.Data))
	}
	return fmt.Errorf("%w: %s", core.ErrStaleAccount, u.Key)
}

// ListAccounts implements types.AccountStore
func (c *Context) ListAccounts(owner core.Address) ([]*types.AccountInfo, error) {
	var dbAccs []DBAccount
	if err := c.db.Where("owner_address = ?", owner.String()).Order("account_key").Find(&dbAccs).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	out := make([]*types.AccountInfo, 0, len(dbAccs))
	for i := range dbAccs {
		acc, err := toAccountInfo(&dbAccs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

// RecordInstruction implements types.AccountStore
func (c *Context) RecordInstruction(rec *types.InstructionRecord) error {
	keys := make([]string, len(rec.Accounts))
	for i, acc := range rec.Accounts {
		keys[i] = acc.String()
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal instruction accounts: %w", err)
	}

	dbIns := &DBInstruction{
		Hash:      rec.Hash.String(),
		ProgramID: rec.ProgramID.String(),
		Accounts:  data,
		Success:   rec.Success,
		Error:     rec.Error,
	}
	if !rec.ExecutedAt.IsZero() {
		dbIns.CreatedAt = rec.ExecutedAt
	}
	if err := c.db.Create(dbIns).Error; err != nil {
		return fmt.Errorf("failed to save instruction: %w", err)
	}
	return nil
}

// Instructions implements types.AccountStore
func (c *Context) Instructions(limit int) ([]*types.InstructionRecord, error) {
	query := c.db.Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var dbIns []DBInstruction
	if err := query.Find(&dbIns).Error; err != nil {
		return nil, fmt.Errorf("failed to list instructions: %w", err)
	}

	out := make([]*types.InstructionRecord, 0, len(dbIns))
	for _, ins := range dbIns {
		program, err := core.AddressFromString(ins.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("corrupt program id: %w", err)
		}
		var keys []string
		if err := json.Unmarshal(ins.Accounts, &keys); err != nil {
			return nil, fmt.Errorf("failed to unmarshal instruction accounts: %w", err)
		}
		accounts := make([]core.Address, 0, len(keys))
		for _, k := range keys {
			addr, err := core.AddressFromString(k)
			if err != nil {
				return nil, fmt.Errorf("corrupt account key: %w", err)
			}
			accounts = append(accounts, addr)
		}
		out = append(out, &types.InstructionRecord{
			Hash:       core.HashFromString(ins.Hash),
			ProgramID:  program,
			Accounts:   accounts,
			Success:    ins.Success,
			Error:      ins.Error,
			ExecutedAt: ins.CreatedAt,
		})
	}
	return out, nil
}

// Close releases the underlying database handle
func (c *Context) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
