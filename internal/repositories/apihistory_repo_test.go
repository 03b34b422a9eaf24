package repositories

import (
	"context"
	"testing"
	"time"

	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type APIHistoryRepoTestSuite struct {
	suite.Suite
	mock pgxmock.PgxPoolIface
	repo APIHistoryRepository
	ctx  context.Context
}

func (suite *APIHistoryRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewAPIHistoryRepo(tenancy.NewStaticRouter(mock))
	suite.ctx = context.Background()
}

func (suite *APIHistoryRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestAPIHistoryRepoTestSuite(t *testing.T) {
	suite.Run(t, new(APIHistoryRepoTestSuite))
}

func (suite *APIHistoryRepoTestSuite) TestCreate() {
	userID := uuid.New()
	entry := &models.APIHistory{
		ID:             uuid.New(),
		UserID:         &userID,
		Method:         "POST",
		Endpoint:       "/api/customers",
		ResponseStatus: 201,
		ExecutionTime:  12.5,
	}

	suite.mock.ExpectExec(`INSERT INTO api_history`).
		WithArgs(entry.ID, entry.UserID, entry.TenantID, entry.Method, entry.Endpoint,
			entry.ResponseStatus, entry.IPAddress, entry.UserAgent, entry.ExecutionTime,
			entry.ErrorMessage).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(suite.T(), suite.repo.Create(suite.ctx, entry))
}

func (suite *APIHistoryRepoTestSuite) TestStats() {
	since := time.Now().AddDate(0, 0, -7)

	rows := pgxmock.NewRows([]string{"count", "count", "coalesce", "coalesce"}).
		AddRow(int64(120), int64(4), 18.7, 310.2)
	suite.mock.ExpectQuery(`FROM api_history`).
		WithArgs(since).
		WillReturnRows(rows)

	stats, err := suite.repo.Stats(suite.ctx, since)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(120), stats.TotalCalls)
	assert.Equal(suite.T(), int64(4), stats.ErrorCalls)
	assert.Equal(suite.T(), 18.7, stats.AvgExecutionTime)
	assert.Equal(suite.T(), 310.2, stats.MaxExecutionTime)
	assert.Equal(suite.T(), since, stats.Since)
}
