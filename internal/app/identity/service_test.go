package identity

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"schoolmaps/internal/app/mail"
	"schoolmaps/internal/pkg/auth/jwt"
	"schoolmaps/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeRepository struct {
	mu    sync.Mutex
	users map[string]User
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{users: map[string]User{}}
}

func (r *fakeRepository) CreateUser(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return User{}, ErrEmailTaken
		}
	}
	u.ID = uuid.New().String()
	u.CreatedAt = time.Now()
	r.users[u.ID] = u
	return u, nil
}

func (r *fakeRepository) GetUserByEmail(_ context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *fakeRepository) GetUserByID(_ context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *fakeRepository) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

func (r *fakeRepository) TouchLastLogin(context.Context, string) error { return nil }

type fakeMailer struct {
	sent []mail.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func newTestService() (*Service, *fakeRepository, *fakeMailer) {
	repo := newFakeRepository()
	mailer := &fakeMailer{}
	svc := NewService(Config{JWTSecret: "test-secret", AppBaseURL: "https://schoolmaps.test"}, repo, NewMemoryTokenStore(), mailer, nil)
	svc.hashCost = bcrypt.MinCost
	return svc, repo, mailer
}

func codeOf(err error) int {
	if ce := errs.From(err); ce != nil {
		return ce.Code
	}
	return 0
}

func TestRegisterAndSignIn(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	reg, err := svc.Register(ctx, "lisa@school.nl", "geheim123", "Lisa")
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "lisa@school.nl", reg.Identity.Email)

	payload, err := jwt.ParseToken(reg.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, reg.Identity.UID, payload.ID)
	assert.NotEmpty(t, payload.Id)

	login, err := svc.SignIn(ctx, "LISA@school.nl", "geheim123")
	require.NoError(t, err)
	assert.Equal(t, reg.Identity.UID, login.Identity.UID)
}

func TestRegisterErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.Register(ctx, "lisa@school.nl", "geheim123", "Lisa")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		code     int
	}{
		{"invalid email", "not-an-email", "geheim123", errs.ErrInvalidEmail},
		{"weak password", "tim@school.nl", "abc", errs.ErrWeakPassword},
		{"email in use", "lisa@school.nl", "geheim123", errs.ErrEmailInUse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.password, "")
			assert.Equal(t, tt.code, codeOf(err))
		})
	}
}

func TestSignInWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.Register(ctx, "lisa@school.nl", "geheim123", "Lisa")
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "lisa@school.nl", "verkeerd")
	assert.Equal(t, errs.ErrInvalidCredentials, codeOf(err))

	_, err = svc.SignIn(ctx, "nobody@school.nl", "geheim123")
	assert.Equal(t, errs.ErrInvalidCredentials, codeOf(err))
}

func TestSignOutRevokesToken(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	reg, err := svc.Register(ctx, "lisa@school.nl", "geheim123", "Lisa")
	require.NoError(t, err)

	payload, err := jwt.ParseToken(reg.Token, "test-secret")
	require.NoError(t, err)

	revoked, err := svc.IsRevoked(ctx, payload.Id)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.SignOut(ctx, payload))

	revoked, err = svc.IsRevoked(ctx, payload.Id)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	svc, _, mailer := newTestService()

	_, err := svc.Register(ctx, "lisa@school.nl", "geheim123", "Lisa")
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "nobody@school.nl"))
	assert.Empty(t, mailer.sent, "unknown addresses get no mail")

	require.NoError(t, svc.RequestPasswordReset(ctx, "lisa@school.nl"))
	require.Len(t, mailer.sent, 1)

	text := mailer.sent[0].Text
	idx := strings.Index(text, "Reset-code: ")
	require.GreaterOrEqual(t, idx, 0)
	token := text[idx+len("Reset-code: ") : idx+len("Reset-code: ")+32]

	require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "nieuw-geheim"))

	err = svc.ConfirmPasswordReset(ctx, token, "nog-een-keer")
	assert.Equal(t, errs.ErrResetTokenInvalid, codeOf(err), "tokens are single use")

	_, err = svc.SignIn(ctx, "lisa@school.nl", "nieuw-geheim")
	assert.NoError(t, err)
}

func TestMemoryTokenStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.SaveResetToken(ctx, "t1", "u1", time.Minute))
	now = now.Add(2 * time.Minute)

	_, err := store.TakeResetToken(ctx, "t1")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
