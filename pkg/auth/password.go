// pkg/auth/password.go
package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWeakPassword  = errors.New("password does not meet requirements")
	ErrInvalidEmail  = errors.New("invalid email format")
	ErrWrongPassword = errors.New("password does not match")
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// PasswordManager hashes and checks account passwords.
type PasswordManager struct {
	minLength     int
	requireUpper  bool
	requireLower  bool
	requireNumber bool
	cost          int
}

// NewPasswordManager returns a manager with the default policy: eight
// characters, one upper, one lower and one digit.
func NewPasswordManager() *PasswordManager {
	return &PasswordManager{
		minLength:     8,
		requireUpper:  true,
		requireLower:  true,
		requireNumber: true,
		cost:          12,
	}
}

// WithCost returns a copy hashing at the given bcrypt cost. Tests use
// bcrypt.MinCost.
func (pm *PasswordManager) WithCost(cost int) *PasswordManager {
	cp := *pm
	cp.cost = cost
	return &cp
}

func (pm *PasswordManager) HashPassword(password string) (string, error) {
	if err := pm.ValidatePassword(password); err != nil {
		return "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), pm.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func (pm *PasswordManager) ComparePassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrWrongPassword
		}
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}

func (pm *PasswordManager) ValidatePassword(password string) error {
	if len(password) < pm.minLength {
		return fmt.Errorf("%w: minimum length is %d characters", ErrWeakPassword, pm.minLength)
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	if pm.requireUpper && !hasUpper {
		return fmt.Errorf("%w: must contain at least one uppercase letter", ErrWeakPassword)
	}
	if pm.requireLower && !hasLower {
		return fmt.Errorf("%w: must contain at least one lowercase letter", ErrWeakPassword)
	}
	if pm.requireNumber && !hasNumber {
		return fmt.Errorf("%w: must contain at least one number", ErrWeakPassword)
	}
	return nil
}

// NormalizeEmail lowercases and trims an address and checks its shape.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) > 255 || !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}
