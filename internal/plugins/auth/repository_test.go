package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func newRepoWithMock(t *testing.T) (UserRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewUserRepository(db), mock, db
}

var userColumns = []string{"id", "email", "password_hash", "metadata", "created_at", "updated_at", "last_sign_in"}

func TestUserRepository_FindByEmail_DecodesMetadata(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*email,.*FROM\s+users\s+WHERE\s+email\s*=\s*\?$`).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u-1", "a@example.com", "hash", []byte(`{"username":"a"}`), now, now, nil))

	u, err := repo.FindByEmail(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}
	if u.ID != "u-1" || u.Metadata["username"] != "a" {
		t.Errorf("unexpected user: %+v", u)
	}
	if u.LastSignIn != nil {
		t.Error("expected nil last sign in")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUserRepository_FindByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\?`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := repo.FindByID(context.Background(), "missing")
	assertAppError(t, err, http.StatusNotFound)
}

func TestUserRepository_Create_DuplicateIsConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^INSERT\s+INTO\s+users`).
		WithArgs("u-1", "a@example.com", "hash", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &User{ID: "u-1", Email: "a@example.com", PasswordHash: "hash"})
	assertAppError(t, err, http.StatusConflict)
}

func TestUserRepository_Create_WrapsOtherErrors(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &User{ID: "u-1"})
	if err == nil || err.Error() != "inserting user: db down" {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestUserRepository_UpdatePassword_NoRowIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+password_hash`).
		WithArgs("newhash", sqlmock.AnyArg(), "u-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), "u-9", "newhash")
	assertAppError(t, err, http.StatusNotFound)
}

func TestUserRepository_UpdateMetadata_EncodesJSON(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+metadata`).
		WithArgs([]byte(`{"username":"bo"}`), sqlmock.AnyArg(), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateMetadata(context.Background(), "u-1", map[string]any{"username": "bo"}); err != nil {
		t.Fatalf("UpdateMetadata error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
