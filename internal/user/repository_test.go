package user

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"fitcoach/internal/auth"
)

func setupUserMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "phone", "password_hash", "role", "created_at",
	})
}

func TestCreateUser(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	now := time.Now()
	phone := "+41791234567"

	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO users (name, email, phone, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, email, phone, password_hash, role, created_at
	`)).
		WithArgs("Alice", "a@test.com", &phone, "hash", auth.RoleClient).
		WillReturnRows(userRows().AddRow(1, "Alice", "a@test.com", phone, "hash", "client", now))

	user, err := repo.Create(context.Background(), "Alice", "a@test.com", &phone, "hash", auth.RoleClient)
	require.NoError(t, err)
	require.Equal(t, 1, user.ID)
	require.Equal(t, auth.RoleClient, user.Role)
	require.NotNil(t, user.Phone)
}

func TestFindByEmail(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, name, email, phone, password_hash, role, created_at
		FROM users
		WHERE email = $1
	`)).
		WithArgs("a@test.com").
		WillReturnRows(userRows().AddRow(1, "Alice", "a@test.com", nil, "hash", "client", now))

	user, err := repo.FindByEmail(context.Background(), "a@test.com")
	require.NoError(t, err)
	require.Equal(t, "Alice", user.Name)
	require.Nil(t, user.Phone)
}

func TestEmailExists(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`)).
		WithArgs("a@test.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EmailExists(context.Background(), "a@test.com")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestListByRole(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, name, email, phone, password_hash, role, created_at
		FROM users
		WHERE role = $1
		ORDER BY created_at DESC
	`)).
		WithArgs(auth.RoleClient).
		WillReturnRows(userRows().
			AddRow(2, "Bob", "b@test.com", nil, "hash", "client", now).
			AddRow(1, "Alice", "a@test.com", nil, "hash", "client", now))

	users, err := repo.ListByRole(context.Background(), auth.RoleClient)
	require.NoError(t, err)
	require.Len(t, users, 2)
}
