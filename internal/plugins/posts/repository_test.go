package posts

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/keyxmakerx/scribe/internal/restquery"
)

var postCols = []string{"id", "created_at", "updated_at", "title", "content", "author_id", "image_url"}

func newMockRepo(t *testing.T) (PostRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("creating sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostRepository(db), mock
}

func TestRepository_InsertSetsID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO posts`).
		WithArgs("t", "c", "alice", nil, now, now).
		WillReturnResult(sqlmock.NewResult(42, 1))

	p := &Post{Title: "t", Content: "c", AuthorID: "alice", CreatedAt: now, UpdatedAt: now}
	if err := repo.Insert(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 42 {
		t.Errorf("expected id 42, got %d", p.ID)
	}
}

func TestRepository_UpdateScopesToOwner(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE posts SET title = \?, content = \?, updated_at = \? WHERE id = \? AND author_id = \?`).
		WithArgs("t2", "c2", now, "7", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM posts WHERE id = \? AND author_id = \?`).
		WithArgs("7", "alice").
		WillReturnRows(sqlmock.NewRows(postCols).AddRow(7, now, now, "t2", "c2", "alice", nil))
	mock.ExpectCommit()

	out, err := repo.Update(context.Background(), "alice", IDFilter(7), Patch{Title: "t2", Content: "c2", UpdatedAt: now})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Title != "t2" {
		t.Errorf("unexpected rows: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepository_UpdateWithImage(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	img := "https://img.example/x.png"

	mock.ExpectBegin()
	mock.ExpectExec(`SET title = \?, content = \?, updated_at = \?, image_url = \? WHERE`).
		WithArgs("t", "c", now, img, "7", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows(postCols).AddRow(7, now, now, "t", "c", "alice", img))
	mock.ExpectCommit()

	if _, err := repo.Update(context.Background(), "alice", IDFilter(7), Patch{Title: "t", Content: "c", ImageURL: &img, UpdatedAt: now}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepository_UpdateForeignRowIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE posts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), "mallory", IDFilter(7), Patch{Title: "x", Content: "y"})
	assertAppError(t, err, http.StatusNotFound)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepository_MutationsRequireFilter(t *testing.T) {
	repo, _ := newMockRepo(t)
	err := repo.Delete(context.Background(), "alice", nil)
	assertAppError(t, err, http.StatusBadRequest)

	_, err = repo.Update(context.Background(), "alice", nil, Patch{})
	assertAppError(t, err, http.StatusBadRequest)
}

func TestRepository_DeleteScopesToOwner(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`DELETE FROM posts WHERE id = \? AND author_id = \?`).
		WithArgs("7", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "alice", IDFilter(7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRepository_SelectDefaultsToNewestFirst(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`WHERE author_id = \? ORDER BY created_at DESC, id DESC$`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(postCols))

	out, err := repo.Select(context.Background(), restquery.Query{
		Filters: []restquery.Filter{{Column: "author_id", Op: restquery.Eq, Value: "alice"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", out)
	}
}

func TestRepository_FeedJoinsAuthors(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	mock.ExpectQuery(`FROM posts p\s+INNER JOIN users u .*LEFT JOIN profiles pr`).
		WillReturnRows(sqlmock.NewRows(append(postCols, "email", "username", "avatar_url")).
			AddRow(2, now, now, "t", "c", "bob", nil, "bob@example.com", nil, nil).
			AddRow(1, now, now, "t", "c", "ada", nil, "ada@example.com", "ada", "https://a.example/a.png"))

	out, err := repo.Feed(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	if out[0].AuthorUsername != nil || out[0].DisplayName() != "bob" {
		t.Errorf("expected profile-less author to fall back to email, got %+v", out[0])
	}
	if out[1].AuthorAvatar == nil || *out[1].AuthorAvatar != "https://a.example/a.png" {
		t.Errorf("expected avatar, got %+v", out[1])
	}
}
