package repositories

import (
	"context"
	"testing"
	"time"

	"crmsaas/internal/audit"
	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type HistoryRepoTestSuite struct {
	suite.Suite
	mock pgxmock.PgxPoolIface
	repo HistoryRepository
	ctx  context.Context
}

func (suite *HistoryRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewHistoryRepo(tenancy.NewStaticRouter(mock))
	suite.ctx = tenancy.WithTenant(context.Background(), &models.Tenant{
		ID: uuid.New(), Name: "acme", DatabaseName: "crm_tenant_acme",
	})
}

func (suite *HistoryRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestHistoryRepoTestSuite(t *testing.T) {
	suite.Run(t, new(HistoryRepoTestSuite))
}

func (suite *HistoryRepoTestSuite) TestAppend() {
	rec := &audit.Record{
		ID:        uuid.New(),
		SubjectID: uuid.New(),
		TenantID:  uuid.New(),
		Action:    audit.ActionUpdated,
		FieldName: stringPtr("email"),
		Changes:   audit.Changes{"email": {Old: stringPtr("a"), New: stringPtr("b")}},
		CreatedAt: time.Now(),
	}

	suite.mock.ExpectExec(`INSERT INTO lead_history`).
		WithArgs(rec.ID, rec.SubjectID, rec.TenantID, rec.ChangedBy, "updated",
			rec.FieldName, rec.OldValue, rec.NewValue, rec.Changes, rec.Notes, rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(suite.T(), suite.repo.Append(suite.ctx, "lead_history", rec))
}

func (suite *HistoryRepoTestSuite) TestAppend_RejectsUnknownTable() {
	rec := &audit.Record{ID: uuid.New(), Action: audit.ActionCreated}
	err := suite.repo.Append(suite.ctx, "users; DROP TABLE users", rec)
	assert.Error(suite.T(), err)
}

func (suite *HistoryRepoTestSuite) TestListBySubject_NewestFirst() {
	subjectID := uuid.New()
	tenantID := uuid.New()
	newer := time.Now()
	older := newer.Add(-time.Hour)

	rows := pgxmock.NewRows([]string{
		"id", "subject_id", "tenant_id", "changed_by", "action", "field_name",
		"old_value", "new_value", "changes", "notes", "created_at",
	}).
		AddRow(uuid.New(), subjectID, tenantID, nil, "status_changed", stringPtr("status"),
			stringPtr("new"), stringPtr("contacted"), audit.Changes{}, nil, newer).
		AddRow(uuid.New(), subjectID, tenantID, nil, "created", nil,
			nil, nil, audit.Changes{}, nil, older)

	suite.mock.ExpectQuery(`FROM customer_history`).
		WithArgs(subjectID, 20, 0).
		WillReturnRows(rows)

	records, err := suite.repo.ListBySubject(suite.ctx, "customer_history", subjectID, 20, 0)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), records, 2)
	assert.Equal(suite.T(), audit.ActionStatusChanged, records[0].Action)
	assert.Equal(suite.T(), audit.ActionCreated, records[1].Action)
}

func (suite *HistoryRepoTestSuite) TestListRecent_RejectsUnknownTable() {
	_, err := suite.repo.ListRecent(suite.ctx, "api_history", 20, 0)
	assert.Error(suite.T(), err)
}

func (suite *HistoryRepoTestSuite) TestGetByID() {
	recID := uuid.New()
	rows := pgxmock.NewRows([]string{
		"id", "subject_id", "tenant_id", "changed_by", "action", "field_name",
		"old_value", "new_value", "changes", "notes", "created_at",
	}).AddRow(recID, uuid.New(), uuid.New(), nil, "deleted", stringPtr("is_active"),
		stringPtr("true"), stringPtr("false"), audit.Changes{}, nil, time.Now())

	suite.mock.ExpectQuery(`FROM branch_history`).
		WithArgs(recID).
		WillReturnRows(rows)

	rec, err := suite.repo.GetByID(suite.ctx, "branch_history", recID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), recID, rec.ID)
	assert.Equal(suite.T(), audit.ActionDeleted, rec.Action)
}
