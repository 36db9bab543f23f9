package service

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// generateOtp returns a uniformly random 6-digit code in [100000, 999999]
// drawn from the system CSPRNG.
func generateOtp() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// newResetToken returns a single-use password-reset token. A random UUID
// carries 122 bits of entropy, enough to make guessing infeasible.
func newResetToken() string {
	return uuid.NewString()
}
