package provisioner

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockProvisioner(t *testing.T) (*Provisioner, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(nil, nil, zap.NewNop()), mock
}

func TestRelaxForeignKeys_DropsEveryTenantReference(t *testing.T) {
	p, mock := newMockProvisioner(t)
	result := &Result{}

	mock.ExpectQuery(`FROM pg_constraint`).
		WithArgs(ControlTenantTable).
		WillReturnRows(pgxmock.NewRows([]string{"conname", "relname"}).
			AddRow("customers_tenant_fk", "customers").
			AddRow("leads_tenant_fk", "leads"))

	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE customers DROP CONSTRAINT IF EXISTS customers_tenant_fk")).
		WillReturnResult(pgxmock.NewResult("ALTER", 0))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE leads DROP CONSTRAINT IF EXISTS leads_tenant_fk")).
		WillReturnResult(pgxmock.NewResult("ALTER", 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS tenants")).
		WillReturnResult(pgxmock.NewResult("DROP", 0))

	p.relaxForeignKeys(context.Background(), mock, result)

	assert.Equal(t, []string{"customers_tenant_fk", "leads_tenant_fk"}, result.DroppedConstraints)
	assert.Empty(t, result.StatementErrors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelaxForeignKeys_DropFailureIsRecordedNotFatal(t *testing.T) {
	p, mock := newMockProvisioner(t)
	result := &Result{}

	mock.ExpectQuery(`FROM pg_constraint`).
		WithArgs(ControlTenantTable).
		WillReturnRows(pgxmock.NewRows([]string{"conname", "relname"}).
			AddRow("customers_tenant_fk", "customers"))

	mock.ExpectExec(`DROP CONSTRAINT IF EXISTS customers_tenant_fk`).
		WillReturnError(assert.AnError)
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS tenants")).
		WillReturnResult(pgxmock.NewResult("DROP", 0))

	p.relaxForeignKeys(context.Background(), mock, result)

	assert.Empty(t, result.DroppedConstraints)
	require.Len(t, result.StatementErrors, 1)
	assert.Equal(t, "customers", result.StatementErrors[0].Table)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureForeignKeys_SkipsTenantRegistryInTenantDatabases(t *testing.T) {
	p, mock := newMockProvisioner(t)
	result := &Result{}

	table := TableDef{
		Name: "customers",
		ForeignKeys: []ForeignKey{
			{"customers_tenant_fk", "tenant_id", ControlTenantTable, "id", "CASCADE"},
			{"customers_created_by_fk", "created_by", "users", "id", "SET NULL"},
		},
	}

	// Only the users key is checked; the registry key never is.
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("customers_created_by_fk").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`ALTER TABLE customers ADD CONSTRAINT customers_created_by_fk`).
		WillReturnResult(pgxmock.NewResult("ALTER", 0))

	p.ensureForeignKeys(context.Background(), mock, []TableDef{table}, true, result)

	assert.Empty(t, result.StatementErrors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureForeignKeys_PresentConstraintNotReinstalled(t *testing.T) {
	p, mock := newMockProvisioner(t)
	result := &Result{}

	table := TableDef{
		Name: "leads",
		ForeignKeys: []ForeignKey{
			{"leads_customer_fk", "customer_id", "customers", "id", "SET NULL"},
		},
	}

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("leads_customer_fk").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	p.ensureForeignKeys(context.Background(), mock, []TableDef{table}, false, result)

	assert.Empty(t, result.StatementErrors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileLedger_StampsSatisfiedChangesOnce(t *testing.T) {
	p, mock := newMockProvisioner(t)
	result := &Result{}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_changes`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	for i, change := range SchemaChanges {
		mock.ExpectQuery(`FROM pg_tables`).
			WithArgs(change.Table).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		for _, col := range change.Columns {
			mock.ExpectQuery(`FROM information_schema.columns`).
				WithArgs(change.Table, col).
				WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		}
		// Odd entries pretend to be already stamped.
		affected := int64(1)
		if i%2 == 1 {
			affected = 0
		}
		mock.ExpectExec(`INSERT INTO schema_changes`).
			WithArgs(change.ID).
			WillReturnResult(pgxmock.NewResult("INSERT", affected))
	}

	p.reconcileLedger(context.Background(), mock, result)

	want := 0
	for i := range SchemaChanges {
		if i%2 == 0 {
			want++
		}
	}
	assert.Len(t, result.LedgerReconciled, want)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileLedger_UnsatisfiedChangeNotStamped(t *testing.T) {
	p, mock := newMockProvisioner(t)
	result := &Result{}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_changes`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	// Every change's table is reported missing, so no inserts happen.
	for _, change := range SchemaChanges {
		mock.ExpectQuery(`FROM pg_tables`).
			WithArgs(change.Table).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	}

	p.reconcileLedger(context.Background(), mock, result)

	assert.Empty(t, result.LedgerReconciled)
	assert.Empty(t, result.StatementErrors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedReferenceData_LinksExistingPermissionsToAdminRole(t *testing.T) {
	p, mock := newMockProvisioner(t)
	result := &Result{}

	// Permissions already seeded by an earlier run, roles are not.
	permA := uuid.New()
	permB := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM permissions")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(len(seedPermissions)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM permissions")).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(permA).AddRow(permB))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM roles")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	for _, role := range seedRoles {
		mock.ExpectExec(`INSERT INTO roles`).
			WithArgs(pgxmock.AnyArg(), role.name, role.description).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		if !role.allPermissions {
			continue
		}
		for _, permID := range []uuid.UUID{permA, permB} {
			mock.ExpectExec(`INSERT INTO role_permissions`).
				WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), permID).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}
	}

	p.seedReferenceData(context.Background(), mock, result)

	assert.Empty(t, result.StatementErrors)
	assert.NoError(t, mock.ExpectationsWereMet())
}
