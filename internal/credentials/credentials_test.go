package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/lifeplus/internal/apperr"
	"github.com/geocoder89/lifeplus/internal/domain/user"
	"github.com/geocoder89/lifeplus/internal/notifications"
	"github.com/geocoder89/lifeplus/internal/recovery"
	"github.com/geocoder89/lifeplus/internal/security"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]user.User
}

func newFakeUsers(us ...user.User) *fakeUsers {
	f := &fakeUsers{users: map[string]user.User{}}
	for _, u := range us {
		f.users[strings.ToLower(u.Email)] = u
	}
	return f
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, u := range f.users {
		if u.ID == id {
			u.PasswordHash = hash
			f.users[k] = u
			return nil
		}
	}
	return user.ErrNotFound
}

type recordingMailer struct {
	sent []notifications.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg notifications.Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

type stubIssuer struct{}

func (stubIssuer) IssueToken(sub, role string) (string, error) { return sub + "|" + role, nil }

type fixture struct {
	mgr    *Manager
	users  *fakeUsers
	codes  *recovery.MemoryStore
	mailer *recordingMailer
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hash, err := security.HashPassword("Old-pass1")
	require.NoError(t, err)

	f := &fixture{
		users:  newFakeUsers(user.User{ID: "u1", Name: "Ana", Email: "ana@example.com", PasswordHash: hash, Role: user.RoleUser}),
		codes:  recovery.NewMemoryStore(),
		mailer: &recordingMailer{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.mgr = NewManager(f.users, f.codes, f.mailer, stubIssuer{}, WithClock(func() time.Time { return f.now }))
	f.mgr.genCode = func() (string, error) { return "042137", nil }
	return f
}

func TestRequestRecoveryCode_StoresAndMails(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.mgr.RequestRecoveryCode(context.Background(), "Ana@Example.com"))

	e, err := f.codes.Get(context.Background(), "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, "042137", e.Code)
	require.Equal(t, f.now.Add(30*time.Minute), e.ExpiresAt)

	require.Len(t, f.mailer.sent, 1)
	require.Equal(t, "ana@example.com", f.mailer.sent[0].To)
	require.Contains(t, f.mailer.sent[0].Text, "042137")
}

func TestRequestRecoveryCode_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	err := f.mgr.RequestRecoveryCode(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, ErrEmailNotFound)
	require.Equal(t, 0, f.codes.Len())
	require.Empty(t, f.mailer.sent)
}

func TestRequestRecoveryCode_MailFailureKeepsCode(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("provider down")

	err := f.mgr.RequestRecoveryCode(context.Background(), "ana@example.com")
	require.ErrorIs(t, err, apperr.ErrDependency)
	require.Equal(t, apperr.KindDependency, apperr.KindOf(err))

	require.NoError(t, f.mgr.ConsumeRecoveryCode(context.Background(), "ana@example.com", "042137", "New-pass1", "New-pass1"))
}

func TestRequestRecoveryCode_OverwritesPendingCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.mgr.RequestRecoveryCode(ctx, "ana@example.com"))
	f.mgr.genCode = func() (string, error) { return "999999", nil }
	require.NoError(t, f.mgr.RequestRecoveryCode(ctx, "ana@example.com"))

	err := f.mgr.ConsumeRecoveryCode(ctx, "ana@example.com", "042137", "New-pass1", "New-pass1")
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	require.NoError(t, f.mgr.ConsumeRecoveryCode(ctx, "ana@example.com", "999999", "New-pass1", "New-pass1"))
}

func TestConsumeRecoveryCode_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mgr.RequestRecoveryCode(ctx, "ana@example.com"))

	require.NoError(t, f.mgr.ConsumeRecoveryCode(ctx, "ana@example.com", "042137", "New-pass1", "New-pass1"))

	u, err := f.users.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.True(t, f.mgr.VerifyPassword("New-pass1", u.PasswordHash))

	err = f.mgr.ConsumeRecoveryCode(ctx, "ana@example.com", "042137", "Other-pass2", "Other-pass2")
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestConsumeRecoveryCode_Expiry(t *testing.T) {
	tests := []struct {
		name    string
		after   time.Duration
		wantErr error
	}{
		{name: "29 minutes", after: 29 * time.Minute},
		{name: "exactly 30 minutes", after: 30 * time.Minute},
		{name: "31 minutes", after: 31 * time.Minute, wantErr: ErrInvalidOrExpiredCode},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.mgr.RequestRecoveryCode(ctx, "ana@example.com"))

			f.now = f.now.Add(tc.after)
			err := f.mgr.ConsumeRecoveryCode(ctx, "ana@example.com", "042137", "New-pass1", "New-pass1")
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestConsumeRecoveryCode_Rules(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		pw       string
		confirm  string
		wantErr  error
		keepCode bool
	}{
		{name: "wrong code", code: "000000", pw: "New-pass1", confirm: "New-pass1", wantErr: ErrInvalidOrExpiredCode, keepCode: true},
		{name: "mismatch", code: "042137", pw: "New-pass1", confirm: "New-pass2", wantErr: ErrPasswordMismatch, keepCode: true},
		{name: "weak", code: "042137", pw: "weakpass", confirm: "weakpass", wantErr: ErrWeakPassword, keepCode: true},
		{name: "over bcrypt limit", code: "042137", pw: "Aa1!" + strings.Repeat("x", 80), confirm: "Aa1!" + strings.Repeat("x", 80), wantErr: ErrWeakPassword, keepCode: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.mgr.RequestRecoveryCode(ctx, "ana@example.com"))

			err := f.mgr.ConsumeRecoveryCode(ctx, "ana@example.com", tc.code, tc.pw, tc.confirm)
			require.ErrorIs(t, err, tc.wantErr)

			_, getErr := f.codes.Get(ctx, "ana@example.com")
			if tc.keepCode {
				require.NoError(t, getErr)
			}
		})
	}
}

func TestConsumeRecoveryCode_LocksAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mgr.RequestRecoveryCode(ctx, "ana@example.com"))

	for i := 1; i < MaxCodeAttempts; i++ {
		err := f.mgr.ConsumeRecoveryCode(ctx, "ana@example.com", "999999", "New-pass1", "New-pass1")
		require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

		e, getErr := f.codes.Get(ctx, "ana@example.com")
		require.NoError(t, getErr)
		require.Equal(t, i, e.Attempts)
	}

	err := f.mgr.ConsumeRecoveryCode(ctx, "ana@example.com", "999999", "New-pass1", "New-pass1")
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	_, err = f.codes.Get(ctx, "ana@example.com")
	require.ErrorIs(t, err, recovery.ErrNoCode)

	// the right code no longer works once burned
	err = f.mgr.ConsumeRecoveryCode(ctx, "ana@example.com", "042137", "New-pass1", "New-pass1")
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	// a fresh request starts the count again
	require.NoError(t, f.mgr.RequestRecoveryCode(ctx, "ana@example.com"))
	e, err := f.codes.Get(ctx, "ana@example.com")
	require.NoError(t, err)
	require.Zero(t, e.Attempts)
	require.NoError(t, f.mgr.ConsumeRecoveryCode(ctx, "ana@example.com", "042137", "New-pass1", "New-pass1"))
}

func TestConsumeRecoveryCode_NoPendingCode(t *testing.T) {
	f := newFixture(t)
	err := f.mgr.ConsumeRecoveryCode(context.Background(), "ana@example.com", "042137", "New-pass1", "New-pass1")
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestGenerateCode_SixDigits(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "non digit in %q", code)
		}
	}
}

func TestHashAndVerify(t *testing.T) {
	m := NewManager(newFakeUsers(), recovery.NewMemoryStore(), &recordingMailer{}, stubIssuer{})

	hash, err := m.HashPassword("Str0ng!pw")
	require.NoError(t, err)
	require.True(t, m.VerifyPassword("Str0ng!pw", hash))
	require.False(t, m.VerifyPassword("wrong", hash))

	_, err = m.HashPassword("Aa1!" + strings.Repeat("x", 80))
	require.ErrorIs(t, err, ErrWeakPassword)

	tok, err := m.IssueToken("u1", user.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, "u1|admin", tok)
}
