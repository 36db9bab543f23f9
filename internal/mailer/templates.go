package mailer

import "fmt"

const (
	otpSubject   = "Your PharmaCare verification code"
	resetSubject = "Password Reset Request"
)

func otpBodies(firstName, otp string) (text, html string) {
	text = fmt.Sprintf("Hello %s,\n\nYour verification code is: %s\n\nThis code expires in 10 minutes.", firstName, otp)
	html = fmt.Sprintf(`
		<h2>Verify your email</h2>
		<p>Hello %s,</p>
		<p>Your verification code is:</p>
		<h1 style="color:blue;">%s</h1>
		<p>This code expires in 10 minutes.</p>`, firstName, otp)
	return text, html
}

func resetBodies(firstName, resetURL string) (text, html string) {
	text = fmt.Sprintf("Hello %s,\n\nYou requested a password reset. Open this link to choose a new password: %s\n\nThis link will expire in 1 hour.", firstName, resetURL)
	html = fmt.Sprintf(`
		<h2>Password Reset Request</h2>
		<p>Hello %s,</p>
		<p>You requested a password reset. Click the link below to reset your password:</p>
		<a href="%s">Reset your password</a>
		<p>This link will expire in 1 hour.</p>`, firstName, resetURL)
	return text, html
}
