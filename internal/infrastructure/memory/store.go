// Package memory is an in-process implementation of the account
// repositories. It enforces the same unique constraints as the postgres
// schema and is used for local runs (STORAGE_DRIVER=memory) and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/oksasatya/go-account-identity/internal/domain/entity"
	"github.com/oksasatya/go-account-identity/internal/domain/repository"
)

// Store holds accounts and confirmation tokens behind one mutex so that
// every create/update is atomic per record.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]entity.Account           // by id
	tokens   map[string]entity.ConfirmationToken // by id
}

func NewStore() *Store {
	return &Store{
		accounts: map[string]entity.Account{},
		tokens:   map[string]entity.ConfirmationToken{},
	}
}

func (s *Store) Accounts() *AccountRepository { return &AccountRepository{s: s} }

func (s *Store) Tokens() *TokenRepository { return &TokenRepository{s: s} }

// deleteAccount removes an account and its tokens.
func (s *Store) deleteAccount(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return false
	}
	delete(s.accounts, id)
	for tid, t := range s.tokens {
		if t.AccountID == id {
			delete(s.tokens, tid)
		}
	}
	return true
}

type AccountRepository struct{ s *Store }

// conflicts reports whether another account already holds the username or
// email. Email comparison is case-insensitive like the postgres index.
func (r *AccountRepository) conflicts(a *entity.Account) bool {
	for id, other := range r.s.accounts {
		if id == a.ID {
			continue
		}
		if other.Username == a.Username || strings.EqualFold(other.Email, a.Email) {
			return true
		}
	}
	return false
}

func (r *AccountRepository) Create(_ context.Context, a *entity.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[a.ID]; ok || r.conflicts(a) {
		return repository.ErrDuplicate
	}
	r.s.accounts[a.ID] = *a
	return nil
}

func (r *AccountRepository) Save(_ context.Context, a *entity.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[a.ID]; !ok {
		return repository.ErrNotFound
	}
	if r.conflicts(a) {
		return repository.ErrDuplicate
	}
	r.s.accounts[a.ID] = *a
	return nil
}

func (r *AccountRepository) Delete(_ context.Context, id string) error {
	if !r.s.deleteAccount(id) {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) GetByID(_ context.Context, id string) (*entity.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *AccountRepository) GetByUsername(_ context.Context, username string) (*entity.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.accounts {
		if a.Username == username {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *AccountRepository) FindByUsernameOrEmail(_ context.Context, username, email string) (*entity.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.accounts {
		if a.Username == username || strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

type TokenRepository struct{ s *Store }

func (r *TokenRepository) Create(_ context.Context, t *entity.ConfirmationToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[t.AccountID]; !ok {
		return repository.ErrNotFound
	}
	for id, other := range r.s.tokens {
		if id == t.ID || other.Token == t.Token {
			return repository.ErrDuplicate
		}
	}
	r.s.tokens[t.ID] = *t
	return nil
}

func (r *TokenRepository) MarkConfirmed(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[id]
	if !ok {
		return repository.ErrNotFound
	}
	if t.Confirmed {
		return repository.ErrConflict
	}
	t.Confirmed = true
	r.s.tokens[id] = t
	return nil
}

func (r *TokenRepository) GetByToken(_ context.Context, token string) (*entity.ConfirmationToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.tokens {
		if t.Token == token {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

var (
	_ repository.AccountRepository           = (*AccountRepository)(nil)
	_ repository.ConfirmationTokenRepository = (*TokenRepository)(nil)
)
