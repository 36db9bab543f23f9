package domain

import (
	"errors"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		violations []string
	}{
		{"valid", "Secret1!", nil},
		{"valid long", "Some Very Long Passphrase!", nil},
		{"too short", "Ab1!", []string{PasswordRuleMinLength}},
		{"no uppercase", "secret1!pass", []string{PasswordRuleUppercase}},
		{"no special", "Secret1pass", []string{PasswordRuleSpecial}},
		{"only lowercase", "password", []string{PasswordRuleUppercase, PasswordRuleSpecial}},
		{"empty", "", []string{PasswordRuleMinLength, PasswordRuleUppercase, PasswordRuleSpecial}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)

			if tt.violations == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var policyErr *PasswordPolicyError
			if !errors.As(err, &policyErr) {
				t.Fatalf("expected PasswordPolicyError, got %v", err)
			}
			if len(policyErr.Violations) != len(tt.violations) {
				t.Fatalf("expected %d violations, got %d: %v", len(tt.violations), len(policyErr.Violations), policyErr.Violations)
			}
			for i, want := range tt.violations {
				if policyErr.Violations[i] != want {
					t.Errorf("violation %d: expected %q, got %q", i, want, policyErr.Violations[i])
				}
			}
		})
	}
}

func TestLandingRoute(t *testing.T) {
	if got := LandingRoute(RoleAdmin); got != "/admin" {
		t.Errorf("admin landing: got %q", got)
	}
	if got := LandingRoute(RolePharmacist); got != "/admin" {
		t.Errorf("pharmacist landing: got %q", got)
	}
	if got := LandingRoute(RoleUser); got != "/" {
		t.Errorf("user landing: got %q", got)
	}
}

func TestRegisterRequestNormalize(t *testing.T) {
	req := RegisterRequest{
		Email:     "  A@X.COM ",
		FirstName: " Amina ",
		LastName:  " Haddad ",
	}
	req.Normalize()

	if req.Email != "a@x.com" {
		t.Errorf("email not normalized: %q", req.Email)
	}
	if req.Role != RoleUser {
		t.Errorf("default role not applied: %q", req.Role)
	}
	if req.FirstName != "Amina" || req.LastName != "Haddad" {
		t.Errorf("names not trimmed: %q %q", req.FirstName, req.LastName)
	}
}
