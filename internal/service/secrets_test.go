package service

import (
	"strconv"
	"testing"
)

func TestGenerateOtpRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		otp, err := generateOtp()
		if err != nil {
			t.Fatalf("generateOtp failed: %v", err)
		}
		if len(otp) != 6 {
			t.Fatalf("expected 6 digits, got %q", otp)
		}
		n, err := strconv.Atoi(otp)
		if err != nil {
			t.Fatalf("non-numeric OTP %q", otp)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("OTP out of range: %d", n)
		}
	}
}

func TestNewResetTokenDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := newResetToken()
		if token == "" {
			t.Fatal("empty reset token")
		}
		if seen[token] {
			t.Fatalf("duplicate reset token %q", token)
		}
		seen[token] = true
	}
}
