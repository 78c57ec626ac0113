package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/result"
)

// SQLiteStore is the local document store. Live queries are driven by an
// in-process hub that is notified after every committed write.
type SQLiteStore struct {
	db     *sql.DB
	hub    *hub
	logger *zap.Logger
	clock  func() time.Time
}

type Option func(*SQLiteStore)

// WithClock overrides the time source used for store-assigned timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.clock = clock
	}
}

func NewSQLiteStore(dataSourceName string, logger *zap.Logger, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	store := &SQLiteStore{
		db:     db,
		hub:    newHub(),
		logger: logger.With(zap.String("component", "sqlite_store")),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	return store, nil
}

// Close ends every live query with a terminal error and closes the database.
func (s *SQLiteStore) Close() error {
	s.hub.close()
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS accounts (
        id TEXT PRIMARY KEY,
        account TEXT UNIQUE NOT NULL,
        username TEXT NOT NULL,
        password_hash TEXT NOT NULL,
        created_at INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY,
        username TEXT NOT NULL DEFAULT '',
        email TEXT NOT NULL DEFAULT '',
        profile_picture_url TEXT NOT NULL DEFAULT '',
        created_at INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        title TEXT NOT NULL DEFAULT '',
        created_at INTEGER NOT NULL,
        updated_at INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations (user_id, updated_at DESC);

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY,
        conversation_id TEXT NOT NULL,
        content TEXT NOT NULL,
        is_from_user INTEGER NOT NULL DEFAULT 0,
        is_error INTEGER NOT NULL DEFAULT 0,
        timestamp INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, timestamp);
    `
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

// failed logs err and converts it for the caller. Expected outcomes such as
// a missing record are logged at debug.
func failed[T any](logger *zap.Logger, op string, err error) result.Result[T] {
	switch result.KindOf(err) {
	case result.KindInternal, result.KindNetwork:
		logger.Warn("store operation failed", zap.String("op", op), zap.Error(err))
	default:
		logger.Debug("store operation rejected", zap.String("op", op), zap.Error(err))
	}
	return result.FromError[T](err)
}

// Account methods

func (s *SQLiteStore) CreateAccount(ctx context.Context, account, username, passwordHash string) (*Account, error) {
	a := &Account{
		ID:           uuid.NewString(),
		Account:      account,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (id, account, username, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		a.ID, a.Account, a.Username, a.PasswordHash, toMicros(a.CreatedAt))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, result.Validation("account already exists")
		}
		return nil, errors.Wrap(err, "failed to insert account")
	}
	return a, nil
}

// GetAccountByName returns nil, nil when no such account exists.
func (s *SQLiteStore) GetAccountByName(ctx context.Context, account string) (*Account, error) {
	return s.getAccount(ctx, "account", account)
}

// GetAccountByID returns nil, nil when no such account exists.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, id string) (*Account, error) {
	return s.getAccount(ctx, "id", id)
}

func (s *SQLiteStore) getAccount(ctx context.Context, column, value string) (*Account, error) {
	var a Account
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, account, username, password_hash, created_at FROM accounts WHERE "+column+" = ?", value).
		Scan(&a.ID, &a.Account, &a.Username, &a.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to query account")
	}
	a.CreatedAt = fromMicros(createdAt)
	return &a, nil
}
