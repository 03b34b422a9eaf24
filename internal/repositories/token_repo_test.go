package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type TokenRepoTestSuite struct {
	suite.Suite
	mock pgxmock.PgxPoolIface
	repo TokenRepository
	ctx  context.Context
}

func (suite *TokenRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewTokenRepo(tenancy.NewStaticRouter(mock))
	suite.ctx = context.Background()
}

func (suite *TokenRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestTokenRepoTestSuite(t *testing.T) {
	suite.Run(t, new(TokenRepoTestSuite))
}

func (suite *TokenRepoTestSuite) TestCreate() {
	token := &models.AuthToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		TokenHash: "deadbeef",
	}

	suite.mock.ExpectExec(`INSERT INTO auth_tokens`).
		WithArgs(token.ID, token.UserID, token.TokenHash).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(suite.T(), suite.repo.Create(suite.ctx, token))
}

func (suite *TokenRepoTestSuite) TestGetByHash() {
	id, userID := uuid.New(), uuid.New()
	rows := pgxmock.NewRows([]string{"id", "user_id", "token_hash", "created_at"}).
		AddRow(id, userID, "deadbeef", time.Now())

	suite.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, token_hash, created_at FROM auth_tokens WHERE token_hash = $1`)).
		WithArgs("deadbeef").
		WillReturnRows(rows)

	token, err := suite.repo.GetByHash(suite.ctx, "deadbeef")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), userID, token.UserID)
}

func (suite *TokenRepoTestSuite) TestDeleteOlderThan_IntervalInSeconds() {
	suite.mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM auth_tokens WHERE created_at < NOW() - $1::interval`)).
		WithArgs("86400 seconds").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := suite.repo.DeleteOlderThan(suite.ctx, 24*time.Hour)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), n)
}

func (suite *TokenRepoTestSuite) TestDeleteForUser() {
	userID := uuid.New()
	suite.mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM auth_tokens WHERE user_id = $1`)).
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	assert.NoError(suite.T(), suite.repo.DeleteForUser(suite.ctx, userID))
}
