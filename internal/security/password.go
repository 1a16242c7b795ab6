package security

import "golang.org/x/crypto/bcrypt"

// PasswordCost is the fixed bcrypt work factor for stored passwords.
const PasswordCost = 10

const minPasswordLength = 8

// MaxPasswordLength is the bcrypt input limit in bytes.
const MaxPasswordLength = 72

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// helper that compares a bcrypt hash with a plaintext password.
func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// StrongPassword reports whether pw has at least 8 characters with a
// lowercase letter, an uppercase letter, a digit and a symbol (anything
// outside [A-Za-z0-9_]). Passwords over MaxPasswordLength bytes are rejected
// since bcrypt cannot hash them.
func StrongPassword(pw string) bool {
	if len(pw) < minPasswordLength || len(pw) > MaxPasswordLength {
		return false
	}

	var lower, upper, digit, symbol bool

	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case r == '_':
			// word character, not a symbol
		default:
			symbol = true
		}
	}

	return lower && upper && digit && symbol
}
