package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens and verifies a pool for the control database.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// Exists reports whether a database with the given name exists on the server
// the pool is connected to.
func Exists(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	var found bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&found)
	if err != nil {
		return false, err
	}
	return found, nil
}

// Create creates a physical database. Identifiers cannot be parameterized in
// DDL, so the name is quoted verbatim; callers derive it once at tenant
// registration and store it unchanged.
func Create(ctx context.Context, pool *pgxpool.Pool, name string) error {
	exists, err := Exists(ctx, pool, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = pool.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %q`, name))
	return err
}

// Drop removes a physical database. Used only by administrative tooling.
func Drop(ctx context.Context, pool *pgxpool.Pool, name string) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS %q`, name))
	return err
}
