// Package storage keeps the small amount of client state that survives a
// restart: the bearer token and a convenience copy of each cart. Neither is
// authoritative; the server cart is re-fetched whenever it is reachable.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/auth"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrSnapshotNotFound = errors.New("cart snapshot not found")

type Store struct {
	db *sqlx.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) RunMigrations() error {
	driver, err := sqlite.WithInstance(s.db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadToken(ctx context.Context) (string, error) {
	var token string
	err := s.db.GetContext(ctx, &token, `SELECT token FROM auth_tokens WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

func (s *Store) SaveToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (id, token, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		token, now())
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (s *Store) ClearToken(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

func (s *Store) SaveCart(ctx context.Context, owner string, items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart snapshot failed: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cart_snapshots (owner, items, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET items = excluded.items, updated_at = excluded.updated_at`,
		owner, string(payload), now())
	if err != nil {
		return fmt.Errorf("failed to save cart snapshot: %w", err)
	}
	return nil
}

func (s *Store) LoadCart(ctx context.Context, owner string) ([]domain.CartItem, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload, `SELECT items FROM cart_snapshots WHERE owner = ?`, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart snapshot: %w", err)
	}

	var items []domain.CartItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("unmarshal cart snapshot failed: %w", err)
	}
	return items, nil
}

func (s *Store) DeleteCart(ctx context.Context, owner string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_snapshots WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("failed to delete cart snapshot: %w", err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
