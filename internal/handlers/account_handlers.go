package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pharmacare/accounts/internal/domain"
	"github.com/pharmacare/accounts/internal/session"
	"github.com/pharmacare/accounts/pkg/csrf"
	"github.com/pharmacare/accounts/pkg/logger"
)

// The generic forgot-password response: identical whether or not the email
// resolves to an account, so the endpoint cannot be used for enumeration.
const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

// CsrfToken issues the anti-forgery token for the visitor's session.
func (h *Handlers) CsrfToken(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	token, err := csrf.Issue(sess.ID, h.config.Account.CSRFSecret, h.config.Account.CSRFTokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

// LoginPage is the side-effect-free GET counterpart of Login: it reports
// whether the visitor is already authenticated and where they should land.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	role, err := sess.Get(r.Context(), session.KeyUserRole)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to read session", "error", err)
	}
	if role != "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"logged_in":   true,
			"redirect_to": domain.LandingRoute(role),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"logged_in": false})
}

// Login handles credential submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	result, err := h.accounts.Login(r.Context(), sessionFrom(r), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Logout clears the whole session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context(), sessionFrom(r)); err != nil {
		logger.ErrorContext(r.Context(), "Failed to clear session", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "Logged out",
		"redirect_to": "/login",
	})
}

// Register creates an unverified account and starts the OTP flow.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	user, err := h.accounts.Register(r.Context(), sessionFrom(r), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Account created! Please check your email for the verification code.",
		"user":    user.ToUserInfo(),
	})
}

// VerifyOtpPage reports the verification state pending for this session.
func (h *Handlers) VerifyOtpPage(w http.ResponseWriter, r *http.Request) {
	email, alreadyConfirmed, err := h.accounts.PendingVerification(r.Context(), sessionFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if alreadyConfirmed {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":     "Email already verified!",
			"redirect_to": "/login",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pending_email": email,
	})
}

// VerifyOtp handles OTP submission.
func (h *Handlers) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Otp == "" {
		writeError(w, http.StatusBadRequest, "Verification code is required", "INVALID_INPUT")
		return
	}

	alreadyConfirmed, err := h.accounts.VerifyOtp(r.Context(), sessionFrom(r), req.Otp)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	message := "Email successfully confirmed! You can now login."
	if alreadyConfirmed {
		message = "Email already verified!"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":     message,
		"redirect_to": "/login",
	})
}

// ResendOtp issues a fresh verification code for the pending email.
func (h *Handlers) ResendOtp(w http.ResponseWriter, r *http.Request) {
	alreadyConfirmed, err := h.accounts.ResendOtp(r.Context(), sessionFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if alreadyConfirmed {
		writeJSON(w, http.StatusOK, map[string]string{
			"message":     "Email already verified!",
			"redirect_to": "/login",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "A new verification code has been sent to your email.",
	})
}

// ForgotPasswordPage is the side-effect-free GET counterpart of
// ForgotPassword.
func (h *Handlers) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Submit your email to receive a password reset link.",
	})
}

// ForgotPassword requests a reset link. The response never reveals whether
// the email is registered; only delivery failures surface.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required.", "INVALID_INPUT")
		return
	}

	err := h.accounts.ForgotPassword(r.Context(), req.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		logger.InfoContext(r.Context(), "Password reset requested for unknown email")
		err = nil
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
}

// ResetPasswordLookup validates a reset token presented via the emailed
// link without consuming it.
func (h *Handlers) ResetPasswordLookup(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	if err := h.accounts.ResetPasswordLookup(r.Context(), token); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// ResetPassword commits a new credential and consumes the token.
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "Your password has been successfully reset!",
		"redirect_to": "/login",
	})
}
