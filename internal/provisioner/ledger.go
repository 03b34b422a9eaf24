package provisioner

import (
	"context"
	"fmt"

	"crmsaas/internal/tenancy"
)

// reconcileLedger records known schema changes as applied when the database
// already carries the structure they describe. Databases provisioned by a
// full catalog pass are born up to date, so change ids are stamped without
// replaying any DDL.
func (p *Provisioner) reconcileLedger(ctx context.Context, db tenancy.DB, result *Result) error {
	_, err := db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id text PRIMARY KEY,
			applied_at timestamptz NOT NULL DEFAULT now()
		)
	`, LedgerTable))
	if err != nil {
		return err
	}

	for _, change := range SchemaChanges {
		ok, err := p.changeSatisfied(ctx, db, change)
		if err != nil {
			result.StatementErrors = append(result.StatementErrors, StatementError{Table: change.Table, Detail: err.Error()})
			continue
		}
		if !ok {
			continue
		}
		tag, err := db.Exec(ctx,
			fmt.Sprintf("INSERT INTO %s (id) VALUES ($1) ON CONFLICT (id) DO NOTHING", LedgerTable),
			change.ID)
		if err != nil {
			result.StatementErrors = append(result.StatementErrors, StatementError{Table: LedgerTable, Detail: err.Error()})
			continue
		}
		if tag.RowsAffected() > 0 {
			result.LedgerReconciled = append(result.LedgerReconciled, change.ID)
		}
	}
	return nil
}

// changeSatisfied reports whether the structure a change describes is already
// present: the table exists and, when the change names columns, every one of
// them does too.
func (p *Provisioner) changeSatisfied(ctx context.Context, db tenancy.DB, change SchemaChange) (bool, error) {
	var tableFound bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_tables WHERE schemaname = 'public' AND tablename = $1)`,
		change.Table).Scan(&tableFound)
	if err != nil || !tableFound {
		return false, err
	}
	for _, col := range change.Columns {
		found, err := columnExists(ctx, db, change.Table, col)
		if err != nil || !found {
			return false, err
		}
	}
	return true, nil
}
