package profiles

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/restquery"
)

// columns is the filter/order allow-list for GET /rest/v1/profiles.
var columns = restquery.Columns{
	"id":         "id",
	"username":   "username",
	"avatar_url": "avatar_url",
	"updated_at": "updated_at",
}

// ProfileRepository defines the data access contract for profiles.
type ProfileRepository interface {
	// Upsert inserts the profile or overwrites username/avatar_url of the
	// existing row with the same id.
	Upsert(ctx context.Context, p *Profile) error
	FindByID(ctx context.Context, id string) (*Profile, error)
	Select(ctx context.Context, q restquery.Query) ([]Profile, error)
}

type profileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a MariaDB-backed profile repository.
func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

const profileColumns = `id, username, avatar_url, updated_at`

func (r *profileRepository) Upsert(ctx context.Context, p *Profile) error {
	query := `INSERT INTO profiles (id, username, avatar_url, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		    username = VALUES(username),
		    avatar_url = VALUES(avatar_url),
		    updated_at = VALUES(updated_at)`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Username, p.AvatarURL, p.UpdatedAt); err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}

func (r *profileRepository) FindByID(ctx context.Context, id string) (*Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	var p Profile
	err := row.Scan(&p.ID, &p.Username, &p.AvatarURL, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperror.NewNotFound("profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return &p, nil
}

func (r *profileRepository) Select(ctx context.Context, q restquery.Query) ([]Profile, error) {
	where, args, err := columns.Where(q.Filters)
	if err != nil {
		return nil, apperror.NewBadRequest(err.Error())
	}
	orderBy, err := columns.OrderBy(q.Order, "updated_at DESC")
	if err != nil {
		return nil, apperror.NewBadRequest(err.Error())
	}

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE ` + where + ` ORDER BY ` + orderBy
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	out := []Profile{}
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.AvatarURL, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
