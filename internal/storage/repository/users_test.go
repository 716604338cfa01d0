package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielstm/cyoa-backend/internal/models"
)

const (
	insertUserQuery = `(?s)^INSERT\s+INTO\s+users\s*\(email,\s*password_hash,\s*profile_pic\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+uid,\s*created_at;\s*$`
	selectByEmail   = `(?s)^SELECT\s+uid,\s*email,\s*password_hash,\s*profile_pic,\s*created_at\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`
	selectByUID     = `(?s)^SELECT\s+uid,\s*email,\s*password_hash,\s*profile_pic,\s*created_at\s+FROM\s+users\s+WHERE\s+uid\s*=\s*\$1\s*$`
	testUID         = "0b6c6b8e-6f1b-4c2e-9b7a-0f1e2d3c4b5a"
)

func newStorageWithMock(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestStorage_RegisterUser(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	pic := "uploads/avatar.png"

	tests := []struct {
		name    string
		user    models.User
		setup   func(m sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "without profile picture",
			user: models.User{Email: "user@test.com", PasswordHash: "hash"},
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(insertUserQuery).
					WithArgs("user@test.com", "hash", sql.NullString{}).
					WillReturnRows(sqlmock.NewRows([]string{"uid", "created_at"}).AddRow(testUID, created))
			},
		},
		{
			name: "with profile picture",
			user: models.User{Email: "user@test.com", PasswordHash: "hash", ProfilePic: &pic},
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(insertUserQuery).
					WithArgs("user@test.com", "hash", sql.NullString{String: pic, Valid: true}).
					WillReturnRows(sqlmock.NewRows([]string{"uid", "created_at"}).AddRow(testUID, created))
			},
		},
		{
			name: "unique violation",
			user: models.User{Email: "taken@test.com", PasswordHash: "hash"},
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(insertUserQuery).
					WithArgs("taken@test.com", "hash", sql.NullString{}).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: ErrUserExists,
		},
		{
			name: "db error",
			user: models.User{Email: "user@test.com", PasswordHash: "hash"},
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(insertUserQuery).
					WithArgs("user@test.com", "hash", sql.NullString{}).
					WillReturnError(errors.New("db down"))
			},
			wantErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, mock := newStorageWithMock(t)
			tt.setup(mock)

			got, err := storage.RegisterUser(context.Background(), tt.user)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Nil(t, got)
				if errors.Is(tt.wantErr, ErrUserExists) {
					assert.True(t, errors.Is(err, ErrUserExists))
				} else {
					assert.Contains(t, err.Error(), tt.wantErr.Error())
					assert.False(t, errors.Is(err, ErrUserExists))
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, testUID, got.UUID)
				assert.Equal(t, created, got.CreatedAt)
				assert.Equal(t, tt.user.Email, got.Email)
				assert.Equal(t, tt.user.ProfilePic, got.ProfilePic)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStorage_RegisterUser_CanceledContext(t *testing.T) {
	storage, mock := newStorageWithMock(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := storage.RegisterUser(ctx, models.User{Email: "a@b.c"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_GetUserByEmail(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("found with picture", func(t *testing.T) {
		storage, mock := newStorageWithMock(t)
		mock.ExpectQuery(selectByEmail).
			WithArgs("user@test.com").
			WillReturnRows(sqlmock.NewRows([]string{"uid", "email", "password_hash", "profile_pic", "created_at"}).
				AddRow(testUID, "user@test.com", "hash", "uploads/a.png", created))

		got, err := storage.GetUserByEmail(context.Background(), "user@test.com")
		require.NoError(t, err)
		assert.Equal(t, testUID, got.UUID)
		assert.Equal(t, "hash", got.PasswordHash)
		require.NotNil(t, got.ProfilePic)
		assert.Equal(t, "uploads/a.png", *got.ProfilePic)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("found without picture", func(t *testing.T) {
		storage, mock := newStorageWithMock(t)
		mock.ExpectQuery(selectByEmail).
			WithArgs("user@test.com").
			WillReturnRows(sqlmock.NewRows([]string{"uid", "email", "password_hash", "profile_pic", "created_at"}).
				AddRow(testUID, "user@test.com", "hash", nil, created))

		got, err := storage.GetUserByEmail(context.Background(), "user@test.com")
		require.NoError(t, err)
		assert.Nil(t, got.ProfilePic)
	})

	t.Run("not found", func(t *testing.T) {
		storage, mock := newStorageWithMock(t)
		mock.ExpectQuery(selectByEmail).
			WithArgs("missing@test.com").
			WillReturnError(sql.ErrNoRows)

		got, err := storage.GetUserByEmail(context.Background(), "missing@test.com")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestStorage_GetUser(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		storage, mock := newStorageWithMock(t)
		mock.ExpectQuery(selectByUID).
			WithArgs(testUID).
			WillReturnRows(sqlmock.NewRows([]string{"uid", "email", "password_hash", "profile_pic", "created_at"}).
				AddRow(testUID, "user@test.com", "hash", nil, created))

		got, err := storage.GetUser(context.Background(), testUID)
		require.NoError(t, err)
		assert.Equal(t, "user@test.com", got.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed uid is not found without a query", func(t *testing.T) {
		storage, mock := newStorageWithMock(t)

		got, err := storage.GetUser(context.Background(), "42")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		storage, mock := newStorageWithMock(t)
		mock.ExpectQuery(selectByUID).
			WithArgs(testUID).
			WillReturnError(errors.New("connection reset"))

		_, err := storage.GetUser(context.Background(), testUID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUserNotFound)
	})
}

func TestStorage_EmailExists(t *testing.T) {
	storage, mock := newStorageWithMock(t)
	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS`).
		WithArgs("user@test.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := storage.EmailExists(context.Background(), "user@test.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCheckDatabaseReady(t *testing.T) {
	storage, mock := newStorageWithMock(t)
	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := CheckDatabaseReady(context.Background(), storage)
	assert.Error(t, err)
}
