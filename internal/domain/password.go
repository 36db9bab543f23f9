package domain

import (
	"strings"
	"unicode"
)

// Password policy rules, reported individually so the caller can tell the
// user exactly which requirements a candidate password failed.
const (
	PasswordRuleMinLength = "must be at least 8 characters"
	PasswordRuleUppercase = "must contain at least one uppercase letter"
	PasswordRuleSpecial   = "must contain at least one special character"
)

type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	return "password " + strings.Join(e.Violations, "; ")
}

// ValidatePassword checks a candidate password against the account policy
// and returns nil when every rule passes.
func ValidatePassword(password string) error {
	var violations []string

	if len(password) < 8 {
		violations = append(violations, PasswordRuleMinLength)
	}

	hasUpper := false
	hasSpecial := false
	for _, c := range password {
		if unicode.IsUpper(c) {
			hasUpper = true
		}
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			hasSpecial = true
		}
	}
	if !hasUpper {
		violations = append(violations, PasswordRuleUppercase)
	}
	if !hasSpecial {
		violations = append(violations, PasswordRuleSpecial)
	}

	if len(violations) > 0 {
		return &PasswordPolicyError{Violations: violations}
	}
	return nil
}
