package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"uninotes/pkg/tracing"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const entriesTable = "storage_entries"

// PostgresStore keeps entries in PostgreSQL. Queries are built with squirrel.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, applies migrations and returns the store.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := runMigrations(dsn); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func runMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err = m.Up(); !errors.Is(err, migrate.ErrNoChange) && err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func getQuery(ns, key string) (string, []interface{}, error) {
	return squirrel.
		Select("value").
		From(entriesTable).
		Where(squirrel.Eq{"namespace": ns, "key": key}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

func upsertQuery(ns, key, value string, now time.Time) (string, []interface{}, error) {
	return squirrel.
		Insert(entriesTable).
		Columns("namespace", "key", "value", "updated_at").
		Values(ns, key, value, now).
		Suffix("ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

func removeQuery(ns string, keys []string) (string, []interface{}, error) {
	return squirrel.
		Delete(entriesTable).
		Where(squirrel.Eq{"namespace": ns, "key": keys}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

func namespacesQuery() (string, []interface{}, error) {
	return squirrel.
		Select("namespace", "MAX(updated_at)").
		From(entriesTable).
		GroupBy("namespace").
		OrderBy("namespace").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

// Get implements Store
func (p *PostgresStore) Get(ctx context.Context, ns, key string) (string, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.postgres.Get")
	defer span.End()

	query, args, err := getQuery(ns, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to build query: %w", err)
	}

	var value string
	err = p.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s/%s: %w", ns, key, err)
	}
	return value, true, nil
}

// Set implements Store
func (p *PostgresStore) Set(ctx context.Context, ns, key, value string) error {
	ctx, span := tracing.StartSpan(ctx, "storage.postgres.Set")
	defer span.End()

	query, args, err := upsertQuery(ns, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", ns, key, err)
	}
	return nil
}

// Remove implements Store
func (p *PostgresStore) Remove(ctx context.Context, ns string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := removeQuery(ns, keys)
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove from %s: %w", ns, err)
	}
	return nil
}

// Namespaces implements Store
func (p *PostgresStore) Namespaces(ctx context.Context) ([]Namespace, error) {
	query, args, err := namespacesQuery()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query namespaces: %w", err)
	}
	defer rows.Close()

	var out []Namespace
	for rows.Next() {
		var ns Namespace
		if err := rows.Scan(&ns.Name, &ns.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// Purge implements Store
func (p *PostgresStore) Purge(ctx context.Context, ns string) error {
	query, args, err := squirrel.
		Delete(entriesTable).
		Where(squirrel.Eq{"namespace": ns}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to purge %s: %w", ns, err)
	}
	return nil
}

// Close closes the connection pool
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
