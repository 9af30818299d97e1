package pgmarket

import (
	"context"
	"time"

	"github.com/ecofinds/greencore/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) CreateUser(ctx context.Context, email, role, apiToken string) (*models.User, error) {
	now := time.Now().UTC()

	var u models.User
	err := s.db.QueryRow(ctx, `
INSERT INTO users (email, role, api_token, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (email) DO UPDATE SET role = EXCLUDED.role, api_token = EXCLUDED.api_token
RETURNING id, email, role, api_token, created_at
`, email, role, apiToken, now).Scan(&u.ID, &u.Email, &u.Role, &u.APIToken, &u.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	return &u, nil
}

// GetUserByToken resolves an opaque API token to a user. (nil, nil)
// means the token is unknown; the HTTP layer turns that into a 401.
func (s *Storage) GetUserByToken(ctx context.Context, apiToken string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, `
SELECT id, email, role, api_token, created_at FROM users WHERE api_token = $1
`, apiToken).Scan(&u.ID, &u.Email, &u.Role, &u.APIToken, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user by token")
	}
	return &u, nil
}
