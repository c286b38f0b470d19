package postgres

import (
	"context"
	"errors"

	"github.com/oksasatya/go-account-identity/internal/domain/entity"
	"github.com/oksasatya/go-account-identity/internal/domain/repository"
)

type TokenRepository struct {
	db DBTX
}

func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, t *entity.ConfirmationToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO confirmation_tokens (id, token, account_id, confirmed, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.Token, t.AccountID, t.Confirmed, t.CreatedAt)
	return mapErr(err)
}

// MarkConfirmed only matches an unconfirmed row, so of several concurrent
// callers exactly one sees a row updated. The others get ErrConflict.
func (r *TokenRepository) MarkConfirmed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE confirmation_tokens SET confirmed = true WHERE id = $1 AND confirmed = false`, id)
	if err != nil {
		return mapErr(err)
	}
	if err := affected(res); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*entity.ConfirmationToken, error) {
	t := &entity.ConfirmationToken{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, token, account_id, confirmed, created_at
		FROM confirmation_tokens
		WHERE token = $1
	`, token).Scan(&t.ID, &t.Token, &t.AccountID, &t.Confirmed, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return t, nil
}

var _ repository.ConfirmationTokenRepository = (*TokenRepository)(nil)
