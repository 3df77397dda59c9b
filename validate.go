package crestauth

import (
	"fmt"
	"strings"
)

const passwordSpecials = "@$!%*?&"

const (
	maxIdentifierLength = 254
	maxPasswordLength   = 128
	minUsernameLength   = 3
	maxUsernameLength   = 30
)

// validatePassword enforces the policy: minimum length plus at least one
// uppercase letter, one lowercase letter, one digit, and one special
// character from the allowed set.
func (e *Engine) validatePassword(plain string) error {
	if len(plain) < e.config.Password.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, e.config.Password.MinLength)
	}
	if len(plain) > maxPasswordLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrWeakPassword, maxPasswordLength)
	}

	var upper, lower, digit, special bool
	for _, r := range plain {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return fmt.Errorf("%w: must contain upper, lower, digit, and one of %q", ErrWeakPassword, passwordSpecials)
	}
	return nil
}

// validateUsername accepts alphanumerics plus "_", "-", and "." so that
// provider-derived usernames from SSO provisioning stay valid.
func validateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return fmt.Errorf("%w: username length out of range", ErrValidation)
	}
	for _, r := range username {
		valid := r >= 'a' && r <= 'z' ||
			r >= 'A' && r <= 'Z' ||
			r >= '0' && r <= '9' ||
			r == '_' || r == '-' || r == '.'
		if !valid {
			return fmt.Errorf("%w: username contains invalid characters", ErrValidation)
		}
	}
	return nil
}

// validateEmail does structural checks only. Deliverability is proven by
// the flows that send mail, not by parsing.
func validateEmail(email string) error {
	if len(email) < 3 || len(email) > maxIdentifierLength {
		return fmt.Errorf("%w: email length out of range", ErrValidation)
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("%w: malformed email", ErrValidation)
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return fmt.Errorf("%w: malformed email", ErrValidation)
	}
	return nil
}

// validatePhone accepts E.164-shaped numbers: an optional leading plus
// and 7 to 15 digits.
func validatePhone(phone string) error {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return fmt.Errorf("%w: phone length out of range", ErrValidation)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: phone contains invalid characters", ErrValidation)
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
