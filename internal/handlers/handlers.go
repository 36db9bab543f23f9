package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pharmacare/accounts/internal/domain"
	"github.com/pharmacare/accounts/internal/repository"
	"github.com/pharmacare/accounts/internal/service"
	"github.com/pharmacare/accounts/internal/session"
	"github.com/pharmacare/accounts/pkg/config"
	"github.com/pharmacare/accounts/pkg/csrf"
	"github.com/pharmacare/accounts/pkg/logger"
)

type Handlers struct {
	accounts   service.AccountService
	sessions   *session.Manager
	rateLimits repository.RateLimitRepository
	config     *config.Config
}

func New(
	accounts service.AccountService,
	sessions *session.Manager,
	rateLimits repository.RateLimitRepository,
	config *config.Config,
) *Handlers {
	return &Handlers{
		accounts:   accounts,
		sessions:   sessions,
		rateLimits: rateLimits,
		config:     config,
	}
}

type contextKey string

const sessionContextKey contextKey = "session"

// WithSession loads (or creates) the visitor's session and stores it on the
// request context for downstream handlers.
func (h *Handlers) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := h.sessions.Load(w, r)
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionContextKey).(*session.Session)
	return sess
}

// RequireCSRF rejects mutating requests that lack a valid anti-forgery
// token for this session. GET-equivalents pass through untouched.
func (h *Handlers) RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		sess := sessionFrom(r)
		token := r.Header.Get("X-CSRF-Token")
		if sess == nil || csrf.Verify(token, sess.ID, h.config.Account.CSRFSecret) != nil {
			writeError(w, http.StatusForbidden, "Invalid or missing anti-forgery token", "INVALID_CSRF_TOKEN")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimit throttles an endpoint per client IP, failing open when the
// store is unavailable.
func (h *Handlers) RateLimit(name string, requests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := name + ":" + getClientIP(r)

			allowed, err := h.rateLimits.CheckRateLimit(r.Context(), key, requests, window)
			if err != nil {
				logger.ErrorContext(r.Context(), "Rate limit check failed", "error", err)
			} else if !allowed {
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.", "RATE_LIMIT_EXCEEDED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
		"code":  code,
	})
}

// writeServiceError maps state-machine errors onto HTTP statuses and stable
// machine codes. Unrecognized errors surface generically.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var policyErr *domain.PasswordPolicyError
	var deliveryErr *domain.DeliveryError
	var storeErr *domain.StoreError

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, domain.ErrEmailNotVerified):
		writeError(w, http.StatusForbidden, "Please verify your email before logging in.", "EMAIL_NOT_VERIFIED")
	case errors.Is(err, domain.ErrAccountInactive):
		writeError(w, http.StatusForbidden, "Your account is inactive. Please contact an administrator.", "ACCOUNT_INACTIVE")
	case errors.Is(err, domain.ErrEmailTaken):
		writeError(w, http.StatusConflict, "Email already exists", "EMAIL_EXISTS")
	case errors.Is(err, domain.ErrPasswordMismatch):
		writeError(w, http.StatusBadRequest, "Password and confirmation do not match", "PASSWORD_MISMATCH")
	case errors.As(err, &policyErr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":      "Password does not meet the policy",
			"code":       "WEAK_PASSWORD",
			"violations": policyErr.Violations,
		})
	case errors.Is(err, domain.ErrNoPendingVerification):
		writeError(w, http.StatusBadRequest, "Session expired. Please register again.", "NO_PENDING_VERIFICATION")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found. Please register again.", "NOT_FOUND")
	case errors.Is(err, domain.ErrOtpExpired):
		writeError(w, http.StatusGone, "Verification code has expired. Please request a new code.", "OTP_EXPIRED")
	case errors.Is(err, domain.ErrOtpMismatch):
		writeError(w, http.StatusBadRequest, "Invalid verification code. Please try again.", "OTP_INVALID")
	case errors.Is(err, domain.ErrInvalidResetToken):
		writeError(w, http.StatusBadRequest, "Token is invalid or has expired.", "INVALID_TOKEN")
	case errors.As(err, &deliveryErr):
		writeError(w, http.StatusBadGateway, "Failed to send email. Please try again.", "DELIVERY_FAILED")
	case errors.As(err, &storeErr):
		logger.ErrorContext(r.Context(), "Store failure", "op", storeErr.Op, "error", storeErr.Err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.", "INTERNAL_ERROR")
	case strings.HasPrefix(err.Error(), "validation failed"):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	default:
		logger.ErrorContext(r.Context(), "Unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.", "INTERNAL_ERROR")
	}
}
