package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-account-identity/internal/domain/apperror"
	"github.com/oksasatya/go-account-identity/internal/domain/entity"
	repo "github.com/oksasatya/go-account-identity/internal/domain/repository"
	"github.com/oksasatya/go-account-identity/internal/infrastructure/memory"
	"github.com/oksasatya/go-account-identity/pkg/helpers"
)

const testSecret = "test-secret"

type recordingNotifier struct {
	mu    sync.Mutex
	links []string
	err   error
}

func (n *recordingNotifier) SendConfirmation(_ context.Context, _, _, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, link)
	return n.err
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.links) == 0 {
		return ""
	}
	return n.links[len(n.links)-1]
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	jwt      *helpers.JWTManager
	notifier *recordingNotifier
}

func newFixture() *fixture {
	store := memory.NewStore()
	jwtm := helpers.NewJWTManager(testSecret)
	n := &recordingNotifier{}
	svc := NewService(ServiceDeps{
		Accounts: store.Accounts(),
		Tokens:   store.Tokens(),
		Hasher:   helpers.NewPasswordHasher(bcrypt.MinCost),
		Signer:   jwtm,
		Notifier: n,
		Link:     func(token string) string { return token },
		Logger:   helpers.NewDiscardLogger(),
	})
	return &fixture{svc: svc, store: store, jwt: jwtm, notifier: n}
}

func aliceInput() RegisterInput {
	return RegisterInput{
		Username:     "alice",
		Email:        "a@x.com",
		FullName:     "Alice A",
		MobileNumber: "0123456789",
		Password:     "pw1",
	}
}

func TestRegister_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	out, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)

	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "alice", out.Username)
	assert.Equal(t, "a@x.com", out.Email)
	assert.False(t, out.Confirmed)

	claims, err := f.jwt.Verify(out.Token)
	require.NoError(t, err)
	assert.Equal(t, out.ID, claims.ID)
	assert.Equal(t, "alice", claims.Username)

	stored, err := f.store.Accounts().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw1")))

	link := f.notifier.last()
	require.NotEmpty(t, link)
	ct, err := f.store.Tokens().GetByToken(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, out.ID, ct.AccountID)
	assert.False(t, ct.Confirmed)
}

func TestRegister_Validation(t *testing.T) {
	cases := map[string]struct {
		mutate func(*RegisterInput)
		field  string
	}{
		"missing username": {func(in *RegisterInput) { in.Username = "" }, "username"},
		"bad email":        {func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		"missing name":     {func(in *RegisterInput) { in.FullName = "" }, "fullName"},
		"short mobile":     {func(in *RegisterInput) { in.MobileNumber = "123456789" }, "mobileNumber"},
		"long mobile":      {func(in *RegisterInput) { in.MobileNumber = "0123456789012345" }, "mobileNumber"},
		"letters mobile":   {func(in *RegisterInput) { in.MobileNumber = "01234abcde" }, "mobileNumber"},
		"missing password": {func(in *RegisterInput) { in.Password = "" }, "password"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			in := aliceInput()
			tc.mutate(&in)

			_, err := f.svc.Register(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, apperror.KindValidationFailed, apperror.KindOf(err))

			var appErr *apperror.Error
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Fields, tc.field)

			_, err = f.store.Accounts().GetByUsername(context.Background(), "alice")
			assert.ErrorIs(t, err, repo.ErrNotFound)
		})
	}
}

func TestRegister_MobileBoundaries(t *testing.T) {
	for _, mobile := range []string{"0123456789", "012-345-6789", "012345678901234"} {
		f := newFixture()
		in := aliceInput()
		in.MobileNumber = mobile
		_, err := f.svc.Register(context.Background(), in)
		assert.NoError(t, err, mobile)
	}
}

func TestRegister_DuplicateIdentity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)

	sameEmail := aliceInput()
	sameEmail.Username = "alice2"
	_, err = f.svc.Register(ctx, sameEmail)
	assert.ErrorIs(t, err, apperror.ErrDuplicateIdentity)

	sameName := aliceInput()
	sameName.Email = "other@x.com"
	_, err = f.svc.Register(ctx, sameName)
	assert.ErrorIs(t, err, apperror.ErrDuplicateIdentity)
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	f := newFixture()
	const n = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok, dup int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(context.Background(), aliceInput())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperror.ErrDuplicateIdentity):
				dup++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}

func TestRegister_NotifierFailureDoesNotFail(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("smtp down")

	out, err := f.svc.Register(context.Background(), aliceInput())
	require.NoError(t, err)
	assert.NotEmpty(t, out.Token)
}

func TestLogin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	reg, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)

	out, err := f.svc.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)
	assert.Equal(t, reg.ID, out.ID)
	claims, err := f.jwt.Verify(out.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, claims.ID)

	_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, LoginInput{Username: "bob", Password: "pw1"})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestConfirmToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	reg, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)
	token := f.notifier.last()

	msg, err := f.svc.ConfirmToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, ConfirmedMessage, msg)

	acc, err := f.store.Accounts().GetByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.True(t, acc.Confirmed)

	_, err = f.svc.ConfirmToken(ctx, token)
	assert.Equal(t, apperror.KindAlreadyConfirmed, apperror.KindOf(err))

	acc, err = f.store.Accounts().GetByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.True(t, acc.Confirmed)
}

func TestConfirmToken_Unknown(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ConfirmToken(context.Background(), "nope")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = f.svc.ConfirmToken(context.Background(), "")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestGetCurrentUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	reg, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)

	out, err := f.svc.GetCurrentUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, out.ID)
	assert.Empty(t, out.Token)

	_, err = f.svc.GetCurrentUser(ctx, "ghost")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

// Failure paths against mocked repositories.

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) Create(ctx context.Context, a *entity.Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAccounts) Save(ctx context.Context, a *entity.Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAccounts) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockAccounts) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*entity.Account)
	return a, args.Error(1)
}

func (m *mockAccounts) GetByUsername(ctx context.Context, username string) (*entity.Account, error) {
	args := m.Called(ctx, username)
	a, _ := args.Get(0).(*entity.Account)
	return a, args.Error(1)
}

func (m *mockAccounts) FindByUsernameOrEmail(ctx context.Context, username, email string) (*entity.Account, error) {
	args := m.Called(ctx, username, email)
	a, _ := args.Get(0).(*entity.Account)
	return a, args.Error(1)
}

type mockTokens struct{ mock.Mock }

func (m *mockTokens) Create(ctx context.Context, t *entity.ConfirmationToken) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTokens) MarkConfirmed(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTokens) GetByToken(ctx context.Context, token string) (*entity.ConfirmationToken, error) {
	args := m.Called(ctx, token)
	ct, _ := args.Get(0).(*entity.ConfirmationToken)
	return ct, args.Error(1)
}

func newMockedService(accounts *mockAccounts, tokens *mockTokens) *Service {
	return NewService(ServiceDeps{
		Accounts: accounts,
		Tokens:   tokens,
		Hasher:   helpers.NewPasswordHasher(bcrypt.MinCost),
		Signer:   helpers.NewJWTManager(testSecret),
		Logger:   helpers.NewDiscardLogger(),
	})
}

func TestRegister_CreateLosesRace(t *testing.T) {
	accounts := &mockAccounts{}
	tokens := &mockTokens{}
	accounts.On("FindByUsernameOrEmail", mock.Anything, "alice", "a@x.com").Return(nil, repo.ErrNotFound)
	accounts.On("Create", mock.Anything, mock.AnythingOfType("*entity.Account")).Return(repo.ErrDuplicate)

	_, err := newMockedService(accounts, tokens).Register(context.Background(), aliceInput())
	assert.ErrorIs(t, err, apperror.ErrDuplicateIdentity)
	tokens.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_StorageFailure(t *testing.T) {
	accounts := &mockAccounts{}
	accounts.On("FindByUsernameOrEmail", mock.Anything, "alice", "a@x.com").Return(nil, errors.New("connection refused"))

	_, err := newMockedService(accounts, &mockTokens{}).Register(context.Background(), aliceInput())
	assert.Equal(t, apperror.KindUnexpected, apperror.KindOf(err))
	accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConfirmToken_AccountSaveFails(t *testing.T) {
	accounts := &mockAccounts{}
	tokens := &mockTokens{}
	ct := &entity.ConfirmationToken{ID: "t1", Token: "tok", AccountID: "a1"}
	tokens.On("GetByToken", mock.Anything, "tok").Return(ct, nil)
	tokens.On("MarkConfirmed", mock.Anything, "t1").Return(nil)
	accounts.On("GetByID", mock.Anything, "a1").Return(&entity.Account{ID: "a1", Username: "alice"}, nil)
	accounts.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := newMockedService(accounts, tokens).ConfirmToken(context.Background(), "tok")
	assert.Equal(t, apperror.KindUnexpected, apperror.KindOf(err))
	tokens.AssertExpectations(t)
	accounts.AssertExpectations(t)
}

func TestRegister_MobileExamples(t *testing.T) {
	cases := map[string]bool{
		"12345":      false,
		"abcdefghij": false,
		"1234567890": true,
	}
	for mobile, ok := range cases {
		f := newFixture()
		in := aliceInput()
		in.MobileNumber = mobile
		_, err := f.svc.Register(context.Background(), in)
		if ok {
			assert.NoError(t, err, mobile)
		} else {
			assert.Equal(t, apperror.KindValidationFailed, apperror.KindOf(err), mobile)
		}
	}
}

func TestAliceScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)
	_, err = f.svc.ConfirmToken(ctx, f.notifier.last())
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	me, err := f.svc.GetCurrentUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, me.Confirmed)
	assert.Equal(t, "a@x.com", me.Email)
	assert.Equal(t, "Alice A", me.FullName)
	assert.Equal(t, "0123456789", me.MobileNumber)
}

func TestConfirmToken_ConditionalWriteLost(t *testing.T) {
	accounts := &mockAccounts{}
	tokens := &mockTokens{}
	tokens.On("GetByToken", mock.Anything, "tok").Return(&entity.ConfirmationToken{ID: "t1", Token: "tok", AccountID: "a1"}, nil)
	tokens.On("MarkConfirmed", mock.Anything, "t1").Return(repo.ErrConflict)

	_, err := newMockedService(accounts, tokens).ConfirmToken(context.Background(), "tok")
	assert.Equal(t, apperror.KindAlreadyConfirmed, apperror.KindOf(err))
	accounts.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

// slowTokens delays reads so that concurrent confirmations all observe the
// token before any of them writes.
type slowTokens struct {
	repo.ConfirmationTokenRepository
}

func (s slowTokens) GetByToken(ctx context.Context, token string) (*entity.ConfirmationToken, error) {
	time.Sleep(5 * time.Millisecond)
	return s.ConfirmationTokenRepository.GetByToken(ctx, token)
}

func TestConfirmToken_ConcurrentCallsConfirmOnce(t *testing.T) {
	f := newFixture()
	f.svc.Tokens = slowTokens{f.store.Tokens()}
	ctx := context.Background()
	_, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)
	token := f.notifier.last()

	const n = 5
	var (
		wg            sync.WaitGroup
		ok, confirmed atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ConfirmToken(ctx, token)
			switch {
			case err == nil:
				ok.Add(1)
			case apperror.KindOf(err) == apperror.KindAlreadyConfirmed:
				confirmed.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, n-1, confirmed.Load())
}

func TestRegister_TokenWriteFailureRemovesAccount(t *testing.T) {
	f := newFixture()
	failing := &mockTokens{}
	failing.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	f.svc.Tokens = failing
	ctx := context.Background()

	_, err := f.svc.Register(ctx, aliceInput())
	assert.Equal(t, apperror.KindUnexpected, apperror.KindOf(err))

	_, err = f.store.Accounts().GetByUsername(ctx, "alice")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	f.svc.Tokens = f.store.Tokens()
	out, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)
	assert.Equal(t, "alice", out.Username)
}

type countingHasher struct {
	PasswordHasher
	verifies atomic.Int32
}

func (h *countingHasher) Verify(plain, hash string) bool {
	h.verifies.Add(1)
	return h.PasswordHasher.Verify(plain, hash)
}

func TestLogin_UnknownUserStillComparesHash(t *testing.T) {
	f := newFixture()
	hasher := &countingHasher{PasswordHasher: f.svc.Hasher}
	f.svc.Hasher = hasher

	_, err := f.svc.Login(context.Background(), LoginInput{Username: "ghost", Password: "pw1"})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	assert.EqualValues(t, 1, hasher.verifies.Load())
	assert.NotEmpty(t, f.svc.dummy())
}
