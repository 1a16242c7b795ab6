package accounts

import (
	"context"
	"strings"
	"testing"

	"github.com/geocoder89/lifeplus/internal/auth"
	"github.com/geocoder89/lifeplus/internal/credentials"
	"github.com/geocoder89/lifeplus/internal/domain/user"
	"github.com/geocoder89/lifeplus/internal/notifications"
	"github.com/geocoder89/lifeplus/internal/recovery"
	"github.com/geocoder89/lifeplus/internal/repo/memory"
	"github.com/stretchr/testify/require"
)

type env struct {
	svc    *Service
	store  *memory.Store
	tokens *auth.Manager
}

func newEnv(t *testing.T) env {
	t.Helper()

	tokens, err := auth.NewManager("test-secret", 0)
	require.NoError(t, err)

	store := memory.NewStore()
	creds := credentials.NewManager(store.Users(), recovery.NewMemoryStore(), notifications.NewLogMailer(nil), tokens)
	return env{svc: NewService(store.Users(), creds, nil), store: store, tokens: tokens}
}

func register(t *testing.T, e env, email string) user.User {
	t.Helper()
	u, err := e.svc.Register(context.Background(), user.RegisterRequest{
		Name: "Ana Souza", Email: email, Password: "Str0ng!pw", BirthDate: "1990-04-12",
	})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	e := newEnv(t)
	u := register(t, e, "  Ana@Example.com ")

	require.Equal(t, "ana@example.com", u.Email)
	require.Equal(t, user.RoleUser, u.Role)
	require.Equal(t, 1990, u.BirthDate.Year())
	require.NotEqual(t, "Str0ng!pw", u.PasswordHash)

	_, err := e.svc.Register(context.Background(), user.RegisterRequest{
		Name: "Other", Email: "ana@example.com", Password: "Str0ng!pw", BirthDate: "1991-01-01",
	})
	require.ErrorIs(t, err, user.ErrEmailAlreadyUsed)

	_, err = e.svc.Register(context.Background(), user.RegisterRequest{
		Name: "Weak", Email: "weak@example.com", Password: "password", BirthDate: "1991-01-01",
	})
	require.ErrorIs(t, err, credentials.ErrWeakPassword)

	_, err = e.svc.Register(context.Background(), user.RegisterRequest{
		Name: "Long", Email: "long@example.com", Password: "Aa1!" + strings.Repeat("x", 80), BirthDate: "1991-01-01",
	})
	require.ErrorIs(t, err, credentials.ErrWeakPassword)
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	u := register(t, e, "ana@example.com")

	token, got, err := e.svc.Login(context.Background(), "ANA@example.com", "Str0ng!pw")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	claims, err := e.tokens.VerifyAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.UserID)
	require.Equal(t, user.RoleUser, claims.Role)

	_, _, err = e.svc.Login(context.Background(), "ana@example.com", "wrong")
	require.ErrorIs(t, err, credentials.ErrInvalidCredentials)

	_, _, err = e.svc.Login(context.Background(), "nobody@example.com", "Str0ng!pw")
	require.ErrorIs(t, err, credentials.ErrInvalidCredentials)
}

func TestUpdatePassword(t *testing.T) {
	e := newEnv(t)
	u := register(t, e, "ana@example.com")
	ctx := context.Background()

	tests := []struct {
		name    string
		req     user.UpdatePasswordRequest
		wantErr error
	}{
		{"wrong current", user.UpdatePasswordRequest{CurrentPassword: "nope", NewPassword: "N3w!pass", ConfirmPassword: "N3w!pass"}, ErrWrongPassword},
		{"mismatch", user.UpdatePasswordRequest{CurrentPassword: "Str0ng!pw", NewPassword: "N3w!pass", ConfirmPassword: "N3w!pasz"}, credentials.ErrPasswordMismatch},
		{"weak", user.UpdatePasswordRequest{CurrentPassword: "Str0ng!pw", NewPassword: "short", ConfirmPassword: "short"}, credentials.ErrWeakPassword},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, e.svc.UpdatePassword(ctx, u.ID, tc.req), tc.wantErr)
		})
	}

	require.NoError(t, e.svc.UpdatePassword(ctx, u.ID, user.UpdatePasswordRequest{
		CurrentPassword: "Str0ng!pw", NewPassword: "N3w!pass", ConfirmPassword: "N3w!pass",
	}))
	_, _, err := e.svc.Login(ctx, "ana@example.com", "N3w!pass")
	require.NoError(t, err)
}

func TestUpdateEmail(t *testing.T) {
	e := newEnv(t)
	ana := register(t, e, "ana@example.com")
	register(t, e, "bob@example.com")
	ctx := context.Background()

	_, err := e.svc.UpdateEmail(ctx, ana.ID, user.UpdateEmailRequest{NewEmail: "new@example.com", Password: "bad"})
	require.ErrorIs(t, err, ErrWrongPassword)

	_, err = e.svc.UpdateEmail(ctx, ana.ID, user.UpdateEmailRequest{NewEmail: "BOB@example.com", Password: "Str0ng!pw"})
	require.ErrorIs(t, err, user.ErrEmailAlreadyUsed)

	got, err := e.svc.UpdateEmail(ctx, ana.ID, user.UpdateEmailRequest{NewEmail: "New@Example.com", Password: "Str0ng!pw"})
	require.NoError(t, err)
	require.Equal(t, "new@example.com", got.Email)
}

func TestUpdateProfileAndDelete(t *testing.T) {
	e := newEnv(t)
	u := register(t, e, "ana@example.com")
	ctx := context.Background()

	name := "Ana S."
	got, err := e.svc.UpdateProfile(ctx, u.ID, user.UpdateProfileRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Ana S.", got.Name)
	require.Equal(t, 1990, got.BirthDate.Year())

	require.NoError(t, e.svc.Delete(ctx, u.ID))
	_, err = e.svc.Me(ctx, u.ID)
	require.ErrorIs(t, err, user.ErrNotFound)
}
