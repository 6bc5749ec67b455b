package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-client/internal/models"
)

// SQLStore keeps identities in Postgres, one row per profile.
type SQLStore struct {
	db      *sqlx.DB
	profile string
}

// NewSQLStore constructs a SQLStore for profile.
func NewSQLStore(db *sqlx.DB, profile string) *SQLStore {
	return &SQLStore{db: db, profile: profile}
}

func (s *SQLStore) Load(ctx context.Context) (models.Identity, error) {
	var id models.Identity
	query := `SELECT username, avatar FROM client_identities WHERE profile=$1`
	if err := s.db.GetContext(ctx, &id, query, s.profile); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Identity{}, ErrNotFound
		}
		return models.Identity{}, err
	}
	return id, nil
}

func (s *SQLStore) Save(ctx context.Context, id models.Identity) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO client_identities (profile, username, avatar)
        VALUES ($1, $2, $3)
        ON CONFLICT (profile) DO UPDATE SET username=EXCLUDED.username, avatar=EXCLUDED.avatar, updated_at=NOW()`,
		s.profile, id.Username, id.Avatar)
	return err
}

func (s *SQLStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM client_identities WHERE profile=$1`, s.profile)
	return err
}
