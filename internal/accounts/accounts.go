// Package accounts implements registration, login and self-service profile
// management on top of the credential manager.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/lifeplus/internal/apperr"
	"github.com/geocoder89/lifeplus/internal/credentials"
	"github.com/geocoder89/lifeplus/internal/domain/user"
	"github.com/google/uuid"
)

var ErrWrongPassword = apperr.New(apperr.KindValidation, "wrong_password", "current password is incorrect")

type Store interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateEmail(ctx context.Context, id, email string) error
	UpdateProfile(ctx context.Context, id string, p user.Profile) (user.User, error)
	Delete(ctx context.Context, id string) error
}

type Service struct {
	users Store
	creds *credentials.Manager
	log   *slog.Logger
}

func NewService(users Store, creds *credentials.Manager, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{users: users, creds: creds, log: log}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a regular user. Roles are never taken from the client.
func (s *Service) Register(ctx context.Context, req user.RegisterRequest) (user.User, error) {
	if !s.creds.ValidateStrength(req.Password) {
		return user.User{}, credentials.ErrWeakPassword
	}

	birth, err := time.Parse(user.BirthDateLayout, req.BirthDate)
	if err != nil {
		return user.User{}, apperr.New(apperr.KindValidation, "invalid_birth_date", "birthDate must be YYYY-MM-DD")
	}

	hash, err := s.creds.HashPassword(req.Password)
	if err != nil {
		return user.User{}, err
	}

	now := time.Now().UTC()
	u := user.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		BirthDate:    birth,
		Role:         user.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.users.Create(ctx, u)
	if err != nil {
		return user.User{}, err
	}

	s.log.InfoContext(ctx, "accounts.registered", "user_id", created.ID)
	return created, nil
}

// Login answers ErrInvalidCredentials for both an unknown email and a wrong
// password.
func (s *Service) Login(ctx context.Context, email, password string) (string, user.User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", user.User{}, credentials.ErrInvalidCredentials
		}
		return "", user.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if !s.creds.VerifyPassword(password, u.PasswordHash) {
		return "", user.User{}, credentials.ErrInvalidCredentials
	}

	token, err := s.creds.IssueToken(u.ID, u.Role)
	if err != nil {
		return "", user.User{}, err
	}
	return token, u, nil
}

func (s *Service) Me(ctx context.Context, id string) (user.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.users.List(ctx)
}

func (s *Service) UpdatePassword(ctx context.Context, id string, req user.UpdatePasswordRequest) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !s.creds.VerifyPassword(req.CurrentPassword, u.PasswordHash) {
		return ErrWrongPassword
	}
	if err := s.creds.CheckNewPassword(req.NewPassword, req.ConfirmPassword); err != nil {
		return err
	}

	hash, err := s.creds.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, id, hash)
}

func (s *Service) UpdateEmail(ctx context.Context, id string, req user.UpdateEmailRequest) (user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if !s.creds.VerifyPassword(req.Password, u.PasswordHash) {
		return user.User{}, ErrWrongPassword
	}

	email := normalizeEmail(req.NewEmail)
	if email == u.Email {
		return u, nil
	}
	if err := s.users.UpdateEmail(ctx, id, email); err != nil {
		return user.User{}, err
	}
	return s.users.GetByID(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id string, req user.UpdateProfileRequest) (user.User, error) {
	var p user.Profile

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		p.Name = &name
	}
	if req.BirthDate != nil {
		birth, err := time.Parse(user.BirthDateLayout, *req.BirthDate)
		if err != nil {
			return user.User{}, apperr.New(apperr.KindValidation, "invalid_birth_date", "birthDate must be YYYY-MM-DD")
		}
		p.BirthDate = &birth
	}

	return s.users.UpdateProfile(ctx, id, p)
}

// Delete removes the account and everything it owns.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "accounts.deleted", "user_id", id)
	return nil
}
