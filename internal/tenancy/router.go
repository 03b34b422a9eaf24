package tenancy

import (
	"context"
	"errors"
)

// Class partitions entities by where their tables live.
type Class int

const (
	// ClassControl entities (tenant registry, API-call history) exist only
	// in the control database.
	ClassControl Class = iota
	// ClassTenant entities (customers, leads, branches, categories, their
	// history tables) exist only in the owning tenant's database.
	ClassTenant
	// ClassShared entities (users, roles, auth tokens) exist in the control
	// database and in every tenant database.
	ClassShared
)

// ErrNoTenant is returned when tenant-scoped access is attempted with no
// tenant resolved and no bootstrap override. Failing closed here is what
// keeps tenant data from silently landing in the control database.
var ErrNoTenant = errors.New("tenancy: no tenant in execution context")

// Router picks the physical database for an entity class under the active
// execution context. It never brokers cross-database joins; co-location is
// guaranteed at provisioning time, not here.
type Router struct {
	control DB
	resolve func(ctx context.Context) (DB, bool, error)
}

// NewRouter routes tenant classes through the registry and control classes
// to the given pool.
func NewRouter(control DB, registry *Registry) *Router {
	return &Router{
		control: control,
		resolve: func(ctx context.Context) (DB, bool, error) {
			tenant, ok := CurrentTenant(ctx)
			if !ok {
				return nil, false, nil
			}
			pool, err := registry.Resolve(tenant)
			if err != nil {
				return nil, true, err
			}
			return pool, true, nil
		},
	}
}

// NewStaticRouter routes every class to the one database handle. Used by
// administrative tooling already connected where it needs to be, and by
// repository tests.
func NewStaticRouter(db DB) *Router {
	return &Router{
		control: db,
		resolve: func(ctx context.Context) (DB, bool, error) {
			return db, true, nil
		},
	}
}

// Route returns the database handle for the class under ctx.
func (r *Router) Route(ctx context.Context, class Class) (DB, error) {
	switch class {
	case ClassControl:
		return r.control, nil
	case ClassShared:
		db, ok, err := r.resolve(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			// No tenant resolved: platform-admin-class accounts are served
			// from the central store.
			return r.control, nil
		}
		return db, nil
	default:
		db, ok, err := r.resolve(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			if BootstrapAllowed(ctx) {
				return r.control, nil
			}
			return nil, ErrNoTenant
		}
		return db, nil
	}
}

// Control returns the control database handle directly; for code whose
// target never depends on context (tenant registry maintenance).
func (r *Router) Control() DB {
	return r.control
}
