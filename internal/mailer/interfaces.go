package mailer

import "github.com/pharmacare/accounts/pkg/config"

type Service interface {
	SendOtpEmail(toEmail, firstName, otp string) error
	SendPasswordResetEmail(toEmail, firstName, resetURL string) error
}

// FromConfig picks the transport: dev mode logs instead of sending,
// MailerSend when an API key is configured, plain SMTP otherwise.
func FromConfig(cfg config.EmailConfig) Service {
	if cfg.DevMode {
		return NewDevMailer()
	}
	if cfg.MailerSendKey != "" {
		return NewMailerSend(cfg.MailerSendKey, cfg.SMTPFromName, cfg.SMTPFrom)
	}
	return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
}
