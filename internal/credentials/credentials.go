// Package credentials owns password hashing and verification, password
// strength, bearer token issuance and the email recovery-code flow.
package credentials

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"math/big"
	"time"

	"github.com/geocoder89/lifeplus/internal/apperr"
	"github.com/geocoder89/lifeplus/internal/domain/user"
	"github.com/geocoder89/lifeplus/internal/notifications"
	"github.com/geocoder89/lifeplus/internal/observability"
	"github.com/geocoder89/lifeplus/internal/recovery"
	"github.com/geocoder89/lifeplus/internal/security"
	"golang.org/x/crypto/bcrypt"
)

// CodeTTL is how long a recovery code stays usable.
const CodeTTL = 30 * time.Minute

const codeDigits = 6

// MaxCodeAttempts is how many wrong guesses burn a pending code.
const MaxCodeAttempts = 5

var (
	ErrEmailNotFound        = apperr.New(apperr.KindNotFound, "email_not_found", "no account for this email")
	ErrInvalidOrExpiredCode = apperr.New(apperr.KindConflict, "invalid_code", "invalid or expired recovery code")
	ErrPasswordMismatch     = apperr.New(apperr.KindValidation, "password_mismatch", "passwords do not match")
	ErrWeakPassword         = apperr.New(apperr.KindValidation, "weak_password", "password must have 8 to 72 characters with upper and lower case letters, a digit and a symbol")
	ErrInvalidCredentials   = apperr.New(apperr.KindUnauthenticated, "invalid_credentials", "invalid email or password")
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type TokenIssuer interface {
	IssueToken(subjectID, role string) (string, error)
}

type Manager struct {
	users  UserStore
	codes  recovery.CodeStore
	mailer notifications.Mailer
	tokens TokenIssuer
	prom   *observability.Prom
	log    *slog.Logger

	now     func() time.Time
	genCode func() (string, error)
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithMetrics(p *observability.Prom) Option {
	return func(m *Manager) { m.prom = p }
}

func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func NewManager(users UserStore, codes recovery.CodeStore, mailer notifications.Mailer, tokens TokenIssuer, opts ...Option) *Manager {
	m := &Manager{
		users:   users,
		codes:   codes,
		mailer:  mailer,
		tokens:  tokens,
		log:     slog.Default(),
		now:     time.Now,
		genCode: generateCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) HashPassword(plain string) (string, error) {
	hash, err := security.HashPassword(plain)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrWeakPassword
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (m *Manager) VerifyPassword(plain, hash string) bool {
	return security.CheckPassword(hash, plain) == nil
}

func (m *Manager) ValidateStrength(pw string) bool {
	return security.StrongPassword(pw)
}

func (m *Manager) IssueToken(subjectID, role string) (string, error) {
	tok, err := m.tokens.IssueToken(subjectID, role)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return tok, nil
}

// CheckNewPassword applies the confirm and strength rules shared by reset and
// change-password.
func (m *Manager) CheckNewPassword(newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if !m.ValidateStrength(newPassword) {
		return ErrWeakPassword
	}
	return nil
}

// RequestRecoveryCode stores a fresh code for email, replacing any pending
// one, and mails it. When the mail cannot be sent the code stays stored and
// the error wraps apperr.ErrDependency.
func (m *Manager) RequestRecoveryCode(ctx context.Context, email string) error {
	u, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrEmailNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	code, err := m.genCode()
	if err != nil {
		return fmt.Errorf("generate recovery code: %w", err)
	}

	entry := recovery.Entry{Code: code, ExpiresAt: m.now().Add(CodeTTL)}
	if err := m.codes.Put(ctx, u.Email, entry); err != nil {
		return fmt.Errorf("store recovery code: %w", err)
	}
	m.prom.IncRecovery("issued")

	msg := recoveryMessage(u, code)
	if err := m.mailer.Send(ctx, msg); err != nil {
		m.log.ErrorContext(ctx, "recovery.mail_failed", "user_id", u.ID, "err", err)
		return fmt.Errorf("%w: send recovery mail: %v", apperr.ErrDependency, err)
	}

	m.log.InfoContext(ctx, "recovery.code_sent", "user_id", u.ID)
	return nil
}

// ConsumeRecoveryCode resets the password for email when code matches the
// pending, unexpired code. The code is single use.
func (m *Manager) ConsumeRecoveryCode(ctx context.Context, email, code, newPassword, confirmPassword string) error {
	entry, err := m.codes.Get(ctx, email)
	if err != nil {
		if errors.Is(err, recovery.ErrNoCode) {
			m.prom.IncRecovery("rejected")
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("load recovery code: %w", err)
	}

	if entry.Expired(m.now()) {
		m.prom.IncRecovery("rejected")
		return ErrInvalidOrExpiredCode
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) != 1 {
		m.prom.IncRecovery("rejected")
		if err := m.recordWrongCode(ctx, email); err != nil {
			return err
		}
		return ErrInvalidOrExpiredCode
	}

	if err := m.CheckNewPassword(newPassword, confirmPassword); err != nil {
		return err
	}

	u, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	hash, err := m.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := m.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := m.codes.Delete(ctx, email); err != nil {
		return fmt.Errorf("delete recovery code: %w", err)
	}
	m.prom.IncRecovery("consumed")
	return nil
}

// recordWrongCode counts a failed guess and drops the code once
// MaxCodeAttempts is reached, so a new one must be requested.
func (m *Manager) recordWrongCode(ctx context.Context, email string) error {
	n, err := m.codes.RecordFailure(ctx, email)
	if err != nil {
		if errors.Is(err, recovery.ErrNoCode) {
			return nil
		}
		return fmt.Errorf("record recovery failure: %w", err)
	}
	if n < MaxCodeAttempts {
		return nil
	}

	if err := m.codes.Delete(ctx, email); err != nil {
		return fmt.Errorf("delete recovery code: %w", err)
	}
	m.prom.IncRecovery("locked")
	m.log.WarnContext(ctx, "recovery.code_locked", "attempts", n)
	return nil
}

// generateCode draws a uniform 6-digit code, leading zeros kept.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func recoveryMessage(u user.User, code string) notifications.Message {
	text := fmt.Sprintf("Hello %s,\n\nYour Life+ password recovery code is %s.\nIt expires in %d minutes.\n\nIf you did not ask for it, ignore this email.\n",
		u.Name, code, int(CodeTTL.Minutes()))
	body := fmt.Sprintf("<p>Hello %s,</p><p>Your Life+ password recovery code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>",
		html.EscapeString(u.Name), code, int(CodeTTL.Minutes()))

	return notifications.Message{
		To:      u.Email,
		Subject: "Life+ password recovery",
		Text:    text,
		HTML:    body,
	}
}
