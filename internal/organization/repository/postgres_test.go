package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-access-control/internal/organization/domain"
	"tenant-access-control/internal/platform/apperr"
)

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewPostgresRepository(sqlDB), mock
}

func TestCreate_DuplicateName(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "organizations_name_key"})

	now := time.Now().UTC()
	err := repo.Create(context.Background(), &domain.Organization{ID: "o1", Name: "acme", CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByMember(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM organizations o JOIN organization_memberships m").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at", "deleted_at"}).
			AddRow("o1", "acme", "", now, now, nil))

	list, err := repo.ListByMember(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "acme", list[0].Name)
	assert.False(t, list[0].IsDeleted())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDelete_Missing(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("UPDATE organizations SET deleted_at").
		WithArgs("o9", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SoftDelete(context.Background(), "o9"), apperr.ErrNotFound)
}
