package mailer

import (
	"github.com/pharmacare/accounts/pkg/logger"
)

// DevMailer logs messages instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendOtpEmail(toEmail, firstName, otp string) error {
	logger.Info("[DEV MAIL] OTP email",
		"to", toEmail,
		"name", firstName,
		"subject", otpSubject,
		"otp", otp,
	)
	return nil
}

func (d *DevMailer) SendPasswordResetEmail(toEmail, firstName, resetURL string) error {
	logger.Info("[DEV MAIL] Password reset email",
		"to", toEmail,
		"name", firstName,
		"subject", resetSubject,
		"reset_url", resetURL,
	)
	return nil
}
