package provisioner

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"crmsaas/internal/tenancy"
	"crmsaas/pkg/database"
)

// ErrDatabaseMissing reports that the physical database does not exist.
// Callers decide whether to create it first (--create-db) or surface the
// failure.
var ErrDatabaseMissing = errors.New("provisioner: database does not exist")

// StatementError is one tolerated DDL failure. Individual statements failing
// never aborts a pass; a table with a slightly weaker constraint beats no
// table.
type StatementError struct {
	Table  string `json:"table"`
	Detail string `json:"detail"`
}

// Result aggregates one EnsureSchema pass. Success is true only when every
// required table is present after the pass.
type Result struct {
	Database           string           `json:"database"`
	CreatedTables      []string         `json:"created_tables"`
	MissingTables      []string         `json:"missing_tables"`
	DroppedConstraints []string         `json:"dropped_constraints"`
	AddedColumns       []string         `json:"added_columns"`
	LedgerReconciled   []string         `json:"ledger_reconciled"`
	StatementErrors    []StatementError `json:"statement_errors,omitempty"`
	Success            bool             `json:"success"`
}

// Provisioner idempotently creates and repairs tenant database schemas.
// A pass is re-runnable but not safe to run concurrently against the same
// database; callers serialize per tenant.
type Provisioner struct {
	control  *pgxpool.Pool
	registry *tenancy.Registry
	log      *zap.Logger
}

func New(control *pgxpool.Pool, registry *tenancy.Registry, log *zap.Logger) *Provisioner {
	return &Provisioner{control: control, registry: registry, log: log}
}

// CreateDatabase creates the physical database when absent.
func (p *Provisioner) CreateDatabase(ctx context.Context, dbName string) error {
	return database.Create(ctx, p.control, dbName)
}

// EnsureSchema brings one tenant database to the required shape: creates
// missing tables from the catalog (cloning structure where a reference table
// already exists), relaxes foreign keys that reference the control-only
// tenant registry, adds late columns, reconciles the schema-change ledger
// against observed structure and seeds reference data into empty tables.
func (p *Provisioner) EnsureSchema(ctx context.Context, dbName string) (*Result, error) {
	result := &Result{Database: dbName}

	exists, err := database.Exists(ctx, p.control, dbName)
	if err != nil {
		return result, err
	}
	if !exists {
		result.MissingTables = RequiredTenantTables()
		return result, ErrDatabaseMissing
	}

	db, err := p.registry.ResolveDatabase(dbName)
	if err != nil {
		return result, err
	}

	present, err := listTables(ctx, db)
	if err != nil {
		return result, err
	}
	p.log.Info("provisioning tenant database",
		zap.String("database", dbName),
		zap.Int("existing_tables", len(present)))

	p.createTables(ctx, db, TenantTables(), present, result)
	p.relaxForeignKeys(ctx, db, result)
	p.ensureForeignKeys(ctx, db, TenantTables(), true, result)
	p.reconcileColumns(ctx, db, result)
	if err := p.reconcileLedger(ctx, db, result); err != nil {
		result.StatementErrors = append(result.StatementErrors, StatementError{Table: LedgerTable, Detail: err.Error()})
	}
	p.seedReferenceData(ctx, db, result)

	// Final verification re-reads the table list rather than trusting the
	// pass's own bookkeeping.
	present, err = listTables(ctx, db)
	if err != nil {
		return result, err
	}
	for _, name := range RequiredTenantTables() {
		if !present[name] {
			result.MissingTables = append(result.MissingTables, name)
		}
	}
	sort.Strings(result.MissingTables)
	result.Success = len(result.MissingTables) == 0

	if result.Success {
		p.log.Info("tenant database provisioned",
			zap.String("database", dbName),
			zap.Strings("created", result.CreatedTables),
			zap.Int("statement_errors", len(result.StatementErrors)))
	} else {
		p.log.Error("tenant database incomplete after provisioning",
			zap.String("database", dbName),
			zap.Strings("missing", result.MissingTables))
	}
	return result, nil
}

// EnsureControlSchema provisions the control database itself: control-only
// tables plus the dual-presence set with all constraints intact.
func (p *Provisioner) EnsureControlSchema(ctx context.Context) (*Result, error) {
	result := &Result{Database: "control"}

	present, err := listTables(ctx, p.control)
	if err != nil {
		return result, err
	}
	p.createTables(ctx, p.control, ControlTables(), present, result)
	p.ensureForeignKeys(ctx, p.control, ControlTables(), false, result)
	p.seedReferenceData(ctx, p.control, result)

	present, err = listTables(ctx, p.control)
	if err != nil {
		return result, err
	}
	for _, t := range ControlTables() {
		if !present[t.Name] {
			result.MissingTables = append(result.MissingTables, t.Name)
		}
	}
	result.Success = len(result.MissingTables) == 0
	return result, nil
}

// RelaxForeignKeys runs the foreign-key relaxation pass alone, for databases
// provisioned by older tooling that cloned the tenant registry table along.
func (p *Provisioner) RelaxForeignKeys(ctx context.Context, dbName string) (*Result, error) {
	result := &Result{Database: dbName}

	exists, err := database.Exists(ctx, p.control, dbName)
	if err != nil {
		return result, err
	}
	if !exists {
		return result, ErrDatabaseMissing
	}

	db, err := p.registry.ResolveDatabase(dbName)
	if err != nil {
		return result, err
	}
	p.relaxForeignKeys(ctx, db, result)
	result.Success = true
	return result, nil
}

func (p *Provisioner) createTables(ctx context.Context, db tenancy.DB, tables []TableDef, present map[string]bool, result *Result) {
	for _, t := range tables {
		if present[t.Name] {
			continue
		}
		stmt := t.CreateSQL()
		if t.CloneFrom != "" && present[t.CloneFrom] {
			stmt = t.CloneSQL()
		}
		if _, err := db.Exec(ctx, stmt); err != nil {
			p.statementFailed(result, t.Name, stmt, err)
			continue
		}
		present[t.Name] = true
		result.CreatedTables = append(result.CreatedTables, t.Name)

		for _, idx := range t.Indexes {
			if _, err := db.Exec(ctx, t.IndexSQL(idx)); err != nil {
				p.statementFailed(result, t.Name, idx.Name, err)
			}
		}
	}
}

// relaxForeignKeys drops every constraint referencing the control-only
// tenant registry and the stray registry table itself if a past run cloned
// it into a tenant database. Dropping an absent constraint is a no-op.
func (p *Provisioner) relaxForeignKeys(ctx context.Context, db tenancy.DB, result *Result) {
	rows, err := db.Query(ctx, `
		SELECT con.conname, rel.relname
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_class ref ON ref.oid = con.confrelid
		WHERE con.contype = 'f' AND ref.relname = $1
	`, ControlTenantTable)
	if err != nil {
		p.statementFailed(result, ControlTenantTable, "list tenant-referencing constraints", err)
		return
	}

	type constraint struct{ name, table string }
	var doomed []constraint
	for rows.Next() {
		var c constraint
		if err := rows.Scan(&c.name, &c.table); err != nil {
			rows.Close()
			p.statementFailed(result, ControlTenantTable, "scan constraint", err)
			return
		}
		doomed = append(doomed, c)
	}
	rows.Close()

	for _, c := range doomed {
		stmt := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", c.table, c.name)
		if _, err := db.Exec(ctx, stmt); err != nil {
			p.statementFailed(result, c.table, stmt, err)
			continue
		}
		result.DroppedConstraints = append(result.DroppedConstraints, c.name)
	}

	if _, err := db.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", ControlTenantTable)); err != nil {
		p.statementFailed(result, ControlTenantTable, "drop stray tenant registry table", err)
	}
}

// ensureForeignKeys re-installs missing same-database constraints. In tenant
// databases any key referencing the tenant registry is skipped; those exist
// only in the control database.
func (p *Provisioner) ensureForeignKeys(ctx context.Context, db tenancy.DB, tables []TableDef, forTenant bool, result *Result) {
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if forTenant && fk.RefTable == ControlTenantTable {
				continue
			}
			var found bool
			err := db.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = $1)`, fk.Name).Scan(&found)
			if err != nil {
				p.statementFailed(result, t.Name, fk.Name, err)
				continue
			}
			if found {
				continue
			}
			if _, err := db.Exec(ctx, t.AddConstraintSQL(fk)); err != nil {
				p.statementFailed(result, t.Name, fk.Name, err)
			}
		}
	}
}

func (p *Provisioner) reconcileColumns(ctx context.Context, db tenancy.DB, result *Result) {
	for _, add := range LateColumns {
		has, err := columnExists(ctx, db, add.Table, add.Column.Name)
		if err != nil {
			p.statementFailed(result, add.Table, add.Column.Name, err)
			continue
		}
		if has {
			continue
		}
		if _, err := db.Exec(ctx, add.SQL()); err != nil {
			p.statementFailed(result, add.Table, add.SQL(), err)
			continue
		}
		result.AddedColumns = append(result.AddedColumns, add.Table+"."+add.Column.Name)
	}
}

// seedReferenceData fills shared reference tables only when empty, so
// re-running a pass never duplicates rows.
func (p *Provisioner) seedReferenceData(ctx context.Context, db tenancy.DB, result *Result) {
	var permCount int
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM permissions").Scan(&permCount); err != nil {
		p.statementFailed(result, "permissions", "count", err)
		return
	}
	permIDs := make([]uuid.UUID, 0, len(seedPermissions))
	if permCount == 0 {
		for _, perm := range seedPermissions {
			id := uuid.New()
			_, err := db.Exec(ctx,
				"INSERT INTO permissions (id, codename, name) VALUES ($1, $2, $3) ON CONFLICT (codename) DO NOTHING",
				id, perm.codename, perm.name)
			if err != nil {
				p.statementFailed(result, "permissions", perm.codename, err)
				continue
			}
			permIDs = append(permIDs, id)
		}
	} else {
		// A prior run may have seeded permissions but died before roles;
		// the admin role still has to link every permission.
		rows, err := db.Query(ctx, "SELECT id FROM permissions")
		if err != nil {
			p.statementFailed(result, "permissions", "select ids", err)
			return
		}
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				p.statementFailed(result, "permissions", "scan id", err)
				return
			}
			permIDs = append(permIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			p.statementFailed(result, "permissions", "select ids", err)
			return
		}
	}

	var roleCount int
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM roles").Scan(&roleCount); err != nil {
		p.statementFailed(result, "roles", "count", err)
		return
	}
	if roleCount != 0 {
		return
	}
	for _, role := range seedRoles {
		roleID := uuid.New()
		_, err := db.Exec(ctx,
			"INSERT INTO roles (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, now(), now()) ON CONFLICT (name) DO NOTHING",
			roleID, role.name, role.description)
		if err != nil {
			p.statementFailed(result, "roles", role.name, err)
			continue
		}
		if !role.allPermissions {
			continue
		}
		for _, permID := range permIDs {
			_, err := db.Exec(ctx,
				"INSERT INTO role_permissions (id, role_id, permission_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
				uuid.New(), roleID, permID)
			if err != nil {
				p.statementFailed(result, "role_permissions", role.name, err)
			}
		}
	}
}

func (p *Provisioner) statementFailed(result *Result, table, stmt string, err error) {
	p.log.Warn("provisioning statement failed",
		zap.String("database", result.Database),
		zap.String("table", table),
		zap.String("statement", stmt),
		zap.Error(err))
	result.StatementErrors = append(result.StatementErrors, StatementError{Table: table, Detail: err.Error()})
}

func listTables(ctx context.Context, db tenancy.DB) (map[string]bool, error) {
	rows, err := db.Query(ctx, `SELECT tablename FROM pg_tables WHERE schemaname = 'public'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		present[name] = true
	}
	return present, rows.Err()
}

func columnExists(ctx context.Context, db tenancy.DB, table, column string) (bool, error) {
	var found bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
		)
	`, table, column).Scan(&found)
	return found, err
}

type seedPermission struct{ codename, name string }

type seedRole struct {
	name           string
	description    string
	allPermissions bool
}

var seedPermissions = buildSeedPermissions()

func buildSeedPermissions() []seedPermission {
	entities := []string{"customer", "lead", "branch", "category"}
	actions := []string{"view", "add", "change", "delete"}
	perms := make([]seedPermission, 0, len(entities)*len(actions))
	for _, entity := range entities {
		for _, action := range actions {
			perms = append(perms, seedPermission{
				codename: action + "_" + entity,
				name:     "Can " + action + " " + entity,
			})
		}
	}
	return perms
}

var seedRoles = []seedRole{
	{"admin", "Full access to all tenant data", true},
	{"staff", "Day-to-day CRM access", false},
	{"viewer", "Read-only access", false},
}
