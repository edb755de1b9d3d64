package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const createKVTable = `
	CREATE TABLE IF NOT EXISTS kv_entries (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, createKVTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv_entries: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = $1`, strings.TrimSpace(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select kv entry: %w", err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	const query = `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`
	if _, err := p.db.ExecContext(ctx, query, strings.TrimSpace(key), value); err != nil {
		return fmt.Errorf("upsert kv entry: %w", err)
	}
	return nil
}

// Update locks the row with SELECT ... FOR UPDATE for the duration of fn.
func (p *Postgres) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	key = strings.TrimSpace(key)
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin kv update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// empty placeholder gives FOR UPDATE a row to lock on first write
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value) VALUES ($1, ''::bytea) ON CONFLICT (key) DO NOTHING`, key); err != nil {
		return fmt.Errorf("insert kv placeholder: %w", err)
	}
	var current []byte
	if err := tx.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 FOR UPDATE`, key).Scan(&current); err != nil {
		return fmt.Errorf("lock kv entry: %w", err)
	}
	if len(current) == 0 {
		current = nil
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE kv_entries SET value = $2, updated_at = now() WHERE key = $1`, key, next); err != nil {
		return fmt.Errorf("update kv entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit kv update: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
