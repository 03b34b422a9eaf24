package tenancy

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"crmsaas/internal/models"
)

// DB is the slice of pgxpool.Pool the repositories and provisioner use.
// pgxmock's pool satisfies it too.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Registry lazily maps a tenant's physical-database identifier to a reusable
// connection pool. Descriptors are synthesized from a shared template with
// only the database name swapped; pools are created lazily and never pinged
// here; whether the database actually exists is the provisioner's concern.
type Registry struct {
	template *pgxpool.Config

	mu    sync.RWMutex
	pools map[string]*pgxpool.Pool
}

// NewRegistry builds a registry around the control DSN; each tenant pool
// reuses its host, credentials and pool options.
func NewRegistry(controlDSN string) (*Registry, error) {
	template, err := pgxpool.ParseConfig(controlDSN)
	if err != nil {
		return nil, err
	}
	// No warm connections: establishment is deferred to first query.
	template.MinConns = 0

	return &Registry{
		template: template,
		pools:    make(map[string]*pgxpool.Pool),
	}, nil
}

// Resolve returns the pool for the tenant's database, registering one on
// first touch. Concurrent first-touch of the same tenant converges on a
// single pool; the descriptors are value-identical either way.
func (r *Registry) Resolve(tenant *models.Tenant) (*pgxpool.Pool, error) {
	return r.ResolveDatabase(tenant.DatabaseName)
}

// ResolveDatabase is Resolve keyed directly by database identifier; the
// provisioner uses it for databases whose tenant row it has not loaded.
func (r *Registry) ResolveDatabase(name string) (*pgxpool.Pool, error) {
	r.mu.RLock()
	pool, ok := r.pools[name]
	r.mu.RUnlock()
	if ok {
		return pool, nil
	}

	config := r.template.Copy()
	config.ConnConfig.Database = name

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.pools[name]; ok {
		// Lost the registration race; the pool never dialed, closing is cheap.
		pool.Close()
		return existing, nil
	}
	r.pools[name] = pool
	return pool, nil
}

// Close shuts down every registered pool.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, pool := range r.pools {
		pool.Close()
		delete(r.pools, name)
	}
}
