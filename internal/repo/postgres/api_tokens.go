package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/rfsouza01/contacthub/internal/domain/user"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTokenNotFound = errors.New("token not found")

type APITokenRow struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	RevokedAt *time.Time
}

type APITokensRepo struct {
	pool *pgxpool.Pool
}

func NewAPITokensRepo(pool *pgxpool.Pool) *APITokensRepo {
	return &APITokensRepo{pool: pool}
}

func (r *APITokensRepo) Create(ctx context.Context, row APITokenRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO api_tokens (id, user_id, token_hash, created_at, revoked_at)
		VALUES ($1,$2,$3,$4,$5)
		`,
		row.ID, row.UserID, row.TokenHash, row.CreatedAt, row.RevokedAt,
	)
	return err
}

// FindUserByTokenHash resolves a presented (already hashed) bearer token to
// its owning user. Revoked tokens resolve to nothing.
func (r *APITokensRepo) FindUserByTokenHash(ctx context.Context, tokenHash string) (user.User, error) {
	var u user.User

	err := r.pool.QueryRow(ctx, `
		SELECT u.id, u.name, u.email, u.password_hash, u.created_at, u.updated_at
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1 AND t.revoked_at IS NULL
	`, tokenHash).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrTokenNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

// RevokeAllForUser invalidates every live token the user holds, across all
// devices. Safe to call when no tokens remain.
func (r *APITokensRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE api_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)

	return err
}
