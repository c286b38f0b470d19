package postgres

import (
	"context"

	"github.com/oksasatya/go-account-identity/internal/domain/entity"
	"github.com/oksasatya/go-account-identity/internal/domain/repository"
)

const accountColumns = `id, username, email, full_name, mobile_number, password_hash, confirmed, created_at, updated_at`

type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, a *entity.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, username, email, full_name, mobile_number, password_hash, confirmed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.Username, a.Email, a.FullName, a.MobileNumber, a.PasswordHash, a.Confirmed, a.CreatedAt, a.UpdatedAt)
	return mapErr(err)
}

func (r *AccountRepository) Save(ctx context.Context, a *entity.Account) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET username = $1, email = $2, full_name = $3, mobile_number = $4, password_hash = $5, confirmed = $6, updated_at = $7
		WHERE id = $8
	`, a.Username, a.Email, a.FullName, a.MobileNumber, a.PasswordHash, a.Confirmed, a.UpdatedAt, a.ID)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

// Delete relies on the ON DELETE CASCADE foreign key to drop the tokens.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	return r.scanOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*entity.Account, error) {
	return r.scanOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)
}

func (r *AccountRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*entity.Account, error) {
	return r.scanOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1 OR lower(email) = lower($2) LIMIT 1`, username, email)
}

func (r *AccountRepository) scanOne(ctx context.Context, query string, args ...any) (*entity.Account, error) {
	a := &entity.Account{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.Username, &a.Email, &a.FullName, &a.MobileNumber,
		&a.PasswordHash, &a.Confirmed, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
