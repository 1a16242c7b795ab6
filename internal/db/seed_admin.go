package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/lifeplus/internal/config"
	"github.com/geocoder89/lifeplus/internal/domain/user"
	"github.com/geocoder89/lifeplus/internal/security"
	"github.com/google/uuid"
)

// AdminStore is the slice of the user store the seed needs. Both record
// store drivers satisfy it.
type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

// EnsureAdminUser creates the configured admin account once. It is a no-op
// when ADMIN_EMAIL or ADMIN_PASSWORD is unset or the account already exists.
func EnsureAdminUser(ctx context.Context, users AdminStore, cfg config.Config) (bool, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	birth, err := time.Parse(user.BirthDateLayout, cfg.AdminBirthDate)
	if err != nil {
		return false, fmt.Errorf("ADMIN_BIRTH_DATE: %w", err)
	}

	hash, err := security.HashPassword(cfg.AdminPassword)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()

	_, err = users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Name:         cfg.AdminName,
		Email:        email,
		PasswordHash: hash,
		BirthDate:    birth,
		Role:         user.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, user.ErrEmailAlreadyUsed) {
		// another instance won the race
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
