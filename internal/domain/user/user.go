package user

import (
	"time"

	"github.com/geocoder89/lifeplus/internal/apperr"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// BirthDateLayout is the wire format for birth dates.
const BirthDateLayout = "2006-01-02"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	BirthDate    time.Time `json:"birthDate"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var (
	ErrNotFound         = apperr.New(apperr.KindNotFound, "user_not_found", "user not found")
	ErrEmailAlreadyUsed = apperr.New(apperr.KindConflict, "email_taken", "email is already in use")
)

type RegisterRequest struct {
	Name      string `json:"name" binding:"required,min=2,max=120"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	BirthDate string `json:"birthDate" binding:"required,datetime=2006-01-02"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Code            string `json:"code" binding:"required,len=6,numeric"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type UpdateEmailRequest struct {
	NewEmail string `json:"newEmail" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// pointers are optional fields, nil means untouched
type UpdateProfileRequest struct {
	Name      *string `json:"name" binding:"omitempty,min=2,max=120"`
	BirthDate *string `json:"birthDate" binding:"omitempty,datetime=2006-01-02"`
}

// Profile is the store-level shape of a profile edit.
type Profile struct {
	Name      *string
	BirthDate *time.Time
}
