package postgres

import (
	"context"
	"testing"
	"time"

	"dchat/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSessionRepositoryMocks(mock sqlmock.Sqlmock) {
	mock.ExpectPrepare("INSERT INTO sessions")
	mock.ExpectPrepare("SELECT id, user_id, token, expires_at, created_at")
	mock.ExpectPrepare("DELETE FROM sessions WHERE token")
	mock.ExpectPrepare("DELETE FROM sessions WHERE expires_at")
}

func TestNewSessionRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	setupSessionRepositoryMocks(mock)

	repo, err := NewSessionRepository(db)
	require.NoError(t, err)
	assert.NotNil(t, repo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	setupSessionRepositoryMocks(mock)
	mock.ExpectQuery("INSERT INTO sessions").
		WithArgs("user-1", "token-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("sess-1", time.Now()))

	repo, err := NewSessionRepository(db)
	require.NoError(t, err)

	session := &domain.Session{
		UserID:    "user-1",
		Token:     "token-1",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), session))
	assert.Equal(t, "sess-1", session.ID)
}

func TestSessionRepository_GetByToken(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		setupSessionRepositoryMocks(mock)
		cols := []string{"id", "user_id", "token", "expires_at", "created_at"}
		mock.ExpectQuery("SELECT id, user_id, token, expires_at, created_at").
			WithArgs("token-1", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("sess-1", "user-1", "token-1", time.Now().Add(time.Hour), time.Now()))

		repo, err := NewSessionRepository(db)
		require.NoError(t, err)

		session, err := repo.GetByToken(context.Background(), "token-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", session.UserID)
	})

	t.Run("expired_or_missing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		setupSessionRepositoryMocks(mock)
		mock.ExpectQuery("SELECT id, user_id, token, expires_at, created_at").
			WithArgs("stale", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		repo, err := NewSessionRepository(db)
		require.NoError(t, err)

		_, err = repo.GetByToken(context.Background(), "stale")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	setupSessionRepositoryMocks(mock)
	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo, err := NewSessionRepository(db)
	require.NoError(t, err)

	count, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
