package provisioner

import (
	"fmt"
	"strings"

	"crmsaas/internal/tenancy"
)

// Column is one column of a catalog table. Def carries the full SQL type and
// column constraints.
type Column struct {
	Name string
	Def  string
}

// ForeignKey is a named constraint ensured separately from table creation so
// the same code path repairs cloned and explicitly created tables alike.
type ForeignKey struct {
	Name      string
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  string
}

// Index is created with IF NOT EXISTS after the table exists.
type Index struct {
	Name    string
	Columns []string
}

// TableDef is the single source of truth for one table's shape. The
// provisioner, the control-database bootstrap and the clone path all render
// DDL from here; there are no duplicated CREATE TABLE strings anywhere else.
type TableDef struct {
	Name  string
	Class tenancy.Class
	// CloneFrom names a same-database reference table whose structure is
	// copied with LIKE INCLUDING ALL when it already exists; foreign keys
	// are re-ensured afterwards since LIKE never carries them.
	CloneFrom   string
	Columns     []Column
	Uniques     [][]string
	ForeignKeys []ForeignKey
	Indexes     []Index
}

// CreateSQL renders the explicit CREATE TABLE statement.
func (t TableDef) CreateSQL() string {
	parts := make([]string, 0, len(t.Columns)+len(t.Uniques))
	for _, col := range t.Columns {
		parts = append(parts, fmt.Sprintf("%s %s", col.Name, col.Def))
	}
	for _, u := range t.Uniques {
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", strings.Join(u, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.Name, strings.Join(parts, ",\n\t"))
}

// CloneSQL renders the structure-clone statement from the reference table.
func (t TableDef) CloneSQL() string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (LIKE %s INCLUDING ALL)", t.Name, t.CloneFrom)
}

// AddConstraintSQL renders the statement that installs fk.
func (t TableDef) AddConstraintSQL(fk ForeignKey) string {
	sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		t.Name, fk.Name, fk.Column, fk.RefTable, fk.RefColumn)
	if fk.OnDelete != "" {
		sql += " ON DELETE " + fk.OnDelete
	}
	return sql
}

// IndexSQL renders one index statement.
func (t TableDef) IndexSQL(idx Index) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		idx.Name, t.Name, strings.Join(idx.Columns, ", "))
}

// ColumnAddition reconciles a column added after the table's first release:
// added by name with a safe default, skipped when present.
type ColumnAddition struct {
	Table  string
	Column Column
}

func (c ColumnAddition) SQL() string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", c.Table, c.Column.Name, c.Column.Def)
}

// SchemaChange is one ledger entry. A change is structurally satisfied when
// its table exists and every listed column is present; satisfied changes are
// marked applied so incremental runs neither recreate structures nor fail on
// duplicates.
type SchemaChange struct {
	ID      string
	Table   string
	Columns []string
}

const (
	// ControlTenantTable is the control-only tenant registry; any foreign
	// key referencing it inside a tenant database is relaxation's target.
	ControlTenantTable = "tenants"
	// LedgerTable records satisfied schema-change identifiers per database.
	LedgerTable = "schema_changes"
)

var timestamps = []Column{
	{"created_at", "timestamptz NOT NULL DEFAULT now()"},
	{"updated_at", "timestamptz NOT NULL DEFAULT now()"},
}

func withTimestamps(cols []Column) []Column {
	return append(cols, timestamps...)
}

func historyColumns() []Column {
	return []Column{
		{"id", "uuid PRIMARY KEY"},
		{"subject_id", "uuid NOT NULL"},
		{"tenant_id", "uuid NOT NULL"},
		{"changed_by", "uuid"},
		{"action", "varchar(20) NOT NULL"},
		{"field_name", "varchar(100)"},
		{"old_value", "text"},
		{"new_value", "text"},
		{"changes", "jsonb"},
		{"notes", "text"},
		{"created_at", "timestamptz NOT NULL DEFAULT now()"},
	}
}

func historyIndexes(table string) []Index {
	return []Index{
		{table + "_subject_created_idx", []string{"subject_id", "created_at"}},
		{table + "_tenant_created_idx", []string{"tenant_id", "created_at"}},
		{table + "_action_created_idx", []string{"action", "created_at"}},
	}
}

func historyForeignKeys(table, subjectTable string) []ForeignKey {
	return []ForeignKey{
		{table + "_subject_fk", "subject_id", subjectTable, "id", "CASCADE"},
		{table + "_tenant_fk", "tenant_id", ControlTenantTable, "id", "CASCADE"},
		{table + "_changed_by_fk", "changed_by", "users", "id", "SET NULL"},
	}
}

// Catalog lists every table the platform requires, control-only tables
// included. Order matters: referenced tables come before referencing ones.
var Catalog = []TableDef{
	{
		Name:  ControlTenantTable,
		Class: tenancy.ClassControl,
		Columns: withTimestamps([]Column{
			{"id", "uuid PRIMARY KEY"},
			{"name", "varchar(100) NOT NULL UNIQUE"},
			{"database_name", "varchar(100) NOT NULL UNIQUE"},
			{"is_active", "boolean NOT NULL DEFAULT true"},
		}),
	},
	{
		Name:  "users",
		Class: tenancy.ClassShared,
		Columns: withTimestamps([]Column{
			{"id", "uuid PRIMARY KEY"},
			{"tenant_id", "uuid"},
			{"username", "varchar(150) NOT NULL UNIQUE"},
			{"email", "varchar(254) NOT NULL"},
			{"password_hash", "text NOT NULL"},
			{"first_name", "varchar(150) NOT NULL DEFAULT ''"},
			{"last_name", "varchar(150) NOT NULL DEFAULT ''"},
			{"is_platform_admin", "boolean NOT NULL DEFAULT false"},
			{"is_active", "boolean NOT NULL DEFAULT true"},
		}),
		ForeignKeys: []ForeignKey{
			{"users_tenant_fk", "tenant_id", ControlTenantTable, "id", "CASCADE"},
		},
		Indexes: []Index{
			{"users_email_idx", []string{"email"}},
		},
	},
	{
		Name:  "roles",
		Class: tenancy.ClassShared,
		Columns: withTimestamps([]Column{
			{"id", "uuid PRIMARY KEY"},
			{"name", "varchar(150) NOT NULL UNIQUE"},
			{"description", "text"},
		}),
	},
	{
		Name:  "permissions",
		Class: tenancy.ClassShared,
		Columns: []Column{
			{"id", "uuid PRIMARY KEY"},
			{"codename", "varchar(100) NOT NULL UNIQUE"},
			{"name", "varchar(255) NOT NULL"},
		},
	},
	{
		Name:  "role_permissions",
		Class: tenancy.ClassShared,
		Columns: []Column{
			{"id", "uuid PRIMARY KEY"},
			{"role_id", "uuid NOT NULL"},
			{"permission_id", "uuid NOT NULL"},
		},
		Uniques: [][]string{{"role_id", "permission_id"}},
		ForeignKeys: []ForeignKey{
			{"role_permissions_role_fk", "role_id", "roles", "id", "CASCADE"},
			{"role_permissions_permission_fk", "permission_id", "permissions", "id", "CASCADE"},
		},
	},
	{
		Name:  "user_roles",
		Class: tenancy.ClassShared,
		Columns: []Column{
			{"id", "uuid PRIMARY KEY"},
			{"user_id", "uuid NOT NULL"},
			{"role_id", "uuid NOT NULL"},
		},
		Uniques: [][]string{{"user_id", "role_id"}},
		ForeignKeys: []ForeignKey{
			{"user_roles_user_fk", "user_id", "users", "id", "CASCADE"},
			{"user_roles_role_fk", "role_id", "roles", "id", "CASCADE"},
		},
	},
	{
		Name:  "auth_tokens",
		Class: tenancy.ClassShared,
		Columns: []Column{
			{"id", "uuid PRIMARY KEY"},
			{"user_id", "uuid NOT NULL"},
			{"token_hash", "varchar(128) NOT NULL UNIQUE"},
			{"created_at", "timestamptz NOT NULL DEFAULT now()"},
		},
		ForeignKeys: []ForeignKey{
			{"auth_tokens_user_fk", "user_id", "users", "id", "CASCADE"},
		},
	},
	{
		Name:  "customers",
		Class: tenancy.ClassTenant,
		Columns: withTimestamps([]Column{
			{"id", "uuid PRIMARY KEY"},
			{"tenant_id", "uuid NOT NULL"},
			{"name", "varchar(255) NOT NULL"},
			{"email", "varchar(254)"},
			{"phone", "varchar(50)"},
			{"company", "varchar(255)"},
			{"address", "text"},
			{"city", "varchar(120)"},
			{"state", "varchar(120)"},
			{"country", "varchar(120)"},
			{"zip_code", "varchar(20)"},
			{"is_active", "boolean NOT NULL DEFAULT true"},
			{"created_by", "uuid"},
		}),
		Uniques: [][]string{{"tenant_id", "email"}},
		ForeignKeys: []ForeignKey{
			{"customers_tenant_fk", "tenant_id", ControlTenantTable, "id", "CASCADE"},
			{"customers_created_by_fk", "created_by", "users", "id", "SET NULL"},
		},
		Indexes: []Index{
			{"customers_tenant_name_idx", []string{"tenant_id", "name"}},
			{"customers_tenant_email_idx", []string{"tenant_id", "email"}},
		},
	},
	{
		Name:        "customer_history",
		Class:       tenancy.ClassTenant,
		Columns:     historyColumns(),
		ForeignKeys: historyForeignKeys("customer_history", "customers"),
		Indexes:     historyIndexes("customer_history"),
	},
	{
		Name:  "leads",
		Class: tenancy.ClassTenant,
		Columns: withTimestamps([]Column{
			{"id", "uuid PRIMARY KEY"},
			{"tenant_id", "uuid NOT NULL"},
			{"customer_id", "uuid"},
			{"name", "varchar(255) NOT NULL"},
			{"email", "varchar(254)"},
			{"phone", "varchar(50)"},
			{"status", "varchar(20) NOT NULL DEFAULT 'new'"},
			{"source", "varchar(120)"},
			{"notes", "text"},
			{"is_active", "boolean NOT NULL DEFAULT true"},
			{"created_by", "uuid"},
		}),
		ForeignKeys: []ForeignKey{
			{"leads_tenant_fk", "tenant_id", ControlTenantTable, "id", "CASCADE"},
			{"leads_customer_fk", "customer_id", "customers", "id", "SET NULL"},
			{"leads_created_by_fk", "created_by", "users", "id", "SET NULL"},
		},
		Indexes: []Index{
			{"leads_tenant_name_idx", []string{"tenant_id", "name"}},
			{"leads_tenant_email_idx", []string{"tenant_id", "email"}},
			{"leads_tenant_status_idx", []string{"tenant_id", "status"}},
		},
	},
	{
		Name:        "lead_history",
		Class:       tenancy.ClassTenant,
		CloneFrom:   "customer_history",
		Columns:     historyColumns(),
		ForeignKeys: historyForeignKeys("lead_history", "leads"),
		Indexes:     historyIndexes("lead_history"),
	},
	{
		Name:  "lead_call_summaries",
		Class: tenancy.ClassTenant,
		Columns: withTimestamps([]Column{
			{"id", "uuid PRIMARY KEY"},
			{"tenant_id", "uuid NOT NULL"},
			{"lead_id", "uuid NOT NULL"},
			{"summary", "text"},
			{"call_time", "timestamptz"},
			{"call_outcome", "varchar(20)"},
			{"is_active", "boolean NOT NULL DEFAULT true"},
			{"created_by", "uuid"},
		}),
		ForeignKeys: []ForeignKey{
			{"lead_call_summaries_tenant_fk", "tenant_id", ControlTenantTable, "id", "CASCADE"},
			{"lead_call_summaries_lead_fk", "lead_id", "leads", "id", "CASCADE"},
			{"lead_call_summaries_created_by_fk", "created_by", "users", "id", "SET NULL"},
		},
		Indexes: []Index{
			{"lead_call_summaries_lead_created_idx", []string{"lead_id", "created_at"}},
			{"lead_call_summaries_tenant_created_idx", []string{"tenant_id", "created_at"}},
		},
	},
	{
		Name:  "branches",
		Class: tenancy.ClassTenant,
		Columns: withTimestamps([]Column{
			{"id", "uuid PRIMARY KEY"},
			{"tenant_id", "uuid NOT NULL"},
			{"name", "varchar(255) NOT NULL"},
			{"code", "varchar(50)"},
			{"address", "text"},
			{"city", "varchar(120)"},
			{"state", "varchar(120)"},
			{"country", "varchar(120)"},
			{"zip_code", "varchar(20)"},
			{"phone", "varchar(50)"},
			{"email", "varchar(254)"},
			{"manager_name", "varchar(255)"},
			{"manager_email", "varchar(254)"},
			{"manager_phone", "varchar(50)"},
			{"notes", "text"},
			{"is_active", "boolean NOT NULL DEFAULT true"},
			{"created_by", "uuid"},
		}),
		Uniques: [][]string{{"tenant_id", "code"}},
		ForeignKeys: []ForeignKey{
			{"branches_tenant_fk", "tenant_id", ControlTenantTable, "id", "CASCADE"},
			{"branches_created_by_fk", "created_by", "users", "id", "SET NULL"},
		},
		Indexes: []Index{
			{"branches_tenant_name_idx", []string{"tenant_id", "name"}},
			{"branches_tenant_city_idx", []string{"tenant_id", "city"}},
			{"branches_tenant_active_idx", []string{"tenant_id", "is_active"}},
		},
	},
	{
		Name:        "branch_history",
		Class:       tenancy.ClassTenant,
		CloneFrom:   "customer_history",
		Columns:     historyColumns(),
		ForeignKeys: historyForeignKeys("branch_history", "branches"),
		Indexes:     historyIndexes("branch_history"),
	},
	{
		Name:  "categories",
		Class: tenancy.ClassTenant,
		Columns: withTimestamps([]Column{
			{"id", "uuid PRIMARY KEY"},
			{"tenant_id", "uuid NOT NULL"},
			{"name", "varchar(255) NOT NULL"},
			{"code", "varchar(50)"},
			{"description", "text"},
			{"parent_id", "uuid"},
			{"notes", "text"},
			{"is_active", "boolean NOT NULL DEFAULT true"},
			{"created_by", "uuid"},
		}),
		Uniques: [][]string{{"tenant_id", "code"}},
		ForeignKeys: []ForeignKey{
			{"categories_tenant_fk", "tenant_id", ControlTenantTable, "id", "CASCADE"},
			{"categories_parent_fk", "parent_id", "categories", "id", "SET NULL"},
			{"categories_created_by_fk", "created_by", "users", "id", "SET NULL"},
		},
		Indexes: []Index{
			{"categories_tenant_name_idx", []string{"tenant_id", "name"}},
			{"categories_tenant_parent_idx", []string{"tenant_id", "parent_id"}},
		},
	},
	{
		Name:        "category_history",
		Class:       tenancy.ClassTenant,
		CloneFrom:   "customer_history",
		Columns:     historyColumns(),
		ForeignKeys: historyForeignKeys("category_history", "categories"),
		Indexes:     historyIndexes("category_history"),
	},
	{
		Name:  "api_history",
		Class: tenancy.ClassControl,
		Columns: []Column{
			{"id", "uuid PRIMARY KEY"},
			{"user_id", "uuid"},
			{"tenant_id", "uuid"},
			{"method", "varchar(10) NOT NULL"},
			{"endpoint", "varchar(500) NOT NULL"},
			{"response_status", "integer"},
			{"ip_address", "varchar(45)"},
			{"user_agent", "text"},
			{"execution_time", "double precision"},
			{"error_message", "text"},
			{"created_at", "timestamptz NOT NULL DEFAULT now()"},
		},
		ForeignKeys: []ForeignKey{
			{"api_history_tenant_fk", "tenant_id", ControlTenantTable, "id", "SET NULL"},
			{"api_history_user_fk", "user_id", "users", "id", "SET NULL"},
		},
		Indexes: []Index{
			{"api_history_user_created_idx", []string{"user_id", "created_at"}},
			{"api_history_tenant_created_idx", []string{"tenant_id", "created_at"}},
			{"api_history_method_created_idx", []string{"method", "created_at"}},
		},
	},
}

// TenantTables returns the catalog subset every tenant database must carry.
func TenantTables() []TableDef {
	tables := make([]TableDef, 0, len(Catalog))
	for _, t := range Catalog {
		if t.Class == tenancy.ClassTenant || t.Class == tenancy.ClassShared {
			tables = append(tables, t)
		}
	}
	return tables
}

// ControlTables returns the catalog subset for the control database:
// control-only plus dual-presence tables.
func ControlTables() []TableDef {
	tables := make([]TableDef, 0, len(Catalog))
	for _, t := range Catalog {
		if t.Class == tenancy.ClassControl || t.Class == tenancy.ClassShared {
			tables = append(tables, t)
		}
	}
	return tables
}

// RequiredTenantTables lists the names final verification checks for.
func RequiredTenantTables() []string {
	defs := TenantTables()
	names := make([]string, 0, len(defs))
	for _, t := range defs {
		names = append(names, t.Name)
	}
	return names
}

// LateColumns are columns added after their table's first release; column
// reconciliation installs the missing ones with their safe defaults.
var LateColumns = []ColumnAddition{
	{"customers", Column{"company", "varchar(255)"}},
	{"leads", Column{"source", "varchar(120)"}},
	{"branches", Column{"manager_name", "varchar(255)"}},
	{"branches", Column{"manager_email", "varchar(254)"}},
	{"branches", Column{"manager_phone", "varchar(50)"}},
	{"categories", Column{"notes", "text"}},
	{"users", Column{"is_platform_admin", "boolean NOT NULL DEFAULT false"}},
}

// SchemaChanges is the ordered ledger of schema-change identifiers.
var SchemaChanges = []SchemaChange{
	{"user.0001_initial", "users", nil},
	{"user.0002_auth_tokens", "auth_tokens", nil},
	{"user.0003_roles_permissions", "role_permissions", nil},
	{"user.0004_platform_admin_flag", "users", []string{"is_platform_admin"}},
	{"customer.0001_initial", "customers", nil},
	{"customer.0002_company", "customers", []string{"company"}},
	{"customer.0003_customerhistory", "customer_history", nil},
	{"customer.0004_ensure_customerhistory_table", "customer_history", nil},
	{"leads.0001_initial", "leads", nil},
	{"leads.0002_leadhistory", "lead_history", nil},
	{"leads.0003_ensure_leadhistory_table", "lead_history", nil},
	{"leads.0004_source", "leads", []string{"source"}},
	{"leads.0005_call_summaries", "lead_call_summaries", nil},
	{"branch.0001_initial", "branches", nil},
	{"branch.0002_branchhistory", "branch_history", nil},
	{"branch.0003_manager_contacts", "branches", []string{"manager_name", "manager_email", "manager_phone"}},
	{"category.0001_initial", "categories", nil},
	{"category.0002_categoryhistory", "category_history", nil},
	{"category.0003_notes", "categories", []string{"notes"}},
}
