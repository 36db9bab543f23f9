package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/pharmacare/accounts/internal/domain"
	"github.com/pharmacare/accounts/internal/mailer"
	"github.com/pharmacare/accounts/internal/repository"
	"github.com/pharmacare/accounts/internal/session"
	"github.com/pharmacare/accounts/pkg/config"
	"github.com/pharmacare/accounts/pkg/events"
	"github.com/pharmacare/accounts/pkg/logger"
)

// AccountService owns every account-state transition: registration with OTP
// email verification, login gating, and password reset. The session is
// passed explicitly so the state machine stays testable without a web layer.
type AccountService interface {
	Login(ctx context.Context, sess *session.Session, req *domain.LoginRequest) (*domain.LoginResult, error)
	Logout(ctx context.Context, sess *session.Session) error
	Register(ctx context.Context, sess *session.Session, req *domain.RegisterRequest) (*domain.User, error)
	PendingVerification(ctx context.Context, sess *session.Session) (email string, alreadyConfirmed bool, err error)
	VerifyOtp(ctx context.Context, sess *session.Session, otp string) (alreadyConfirmed bool, err error)
	ResendOtp(ctx context.Context, sess *session.Session) (alreadyConfirmed bool, err error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPasswordLookup(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, req *domain.ResetPasswordRequest) error
}

type accountService struct {
	users  repository.UserRepository
	mailer mailer.Service
	bus    events.Publisher
	config *config.Config
}

func NewAccountService(
	users repository.UserRepository,
	mailer mailer.Service,
	bus events.Publisher,
	config *config.Config,
) AccountService {
	return &accountService{
		users:  users,
		mailer: mailer,
		bus:    bus,
		config: config,
	}
}

func (s *accountService) Login(ctx context.Context, sess *session.Session, req *domain.LoginRequest) (*domain.LoginResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, &domain.StoreError{Op: "login", Err: err}
	}
	if user == nil {
		// Unknown email and wrong password must be indistinguishable.
		return nil, domain.ErrInvalidCredentials
	}

	valid, err := s.users.ValidateCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, &domain.StoreError{Op: "login", Err: err}
	}
	if !valid {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.EmailConfirmed {
		return nil, domain.ErrEmailNotVerified
	}
	if !user.IsActive {
		return nil, domain.ErrAccountInactive
	}

	if err := sess.Set(ctx, session.KeyUserID, strconv.FormatInt(user.ID, 10)); err != nil {
		return nil, fmt.Errorf("failed to establish session: %w", err)
	}
	if err := sess.Set(ctx, session.KeyUserName, user.DisplayName()); err != nil {
		return nil, fmt.Errorf("failed to establish session: %w", err)
	}
	if err := sess.Set(ctx, session.KeyUserRole, user.Role); err != nil {
		return nil, fmt.Errorf("failed to establish session: %w", err)
	}

	return &domain.LoginResult{
		User:       user.ToUserInfo(),
		RedirectTo: domain.LandingRoute(user.Role),
	}, nil
}

func (s *accountService) Logout(ctx context.Context, sess *session.Session) error {
	return sess.Clear(ctx)
}

func (s *accountService) Register(ctx context.Context, sess *session.Session, req *domain.RegisterRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if req.Password != req.ConfirmPassword {
		return nil, domain.ErrPasswordMismatch
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	// Friendly pre-check; the unique index on users.email is what actually
	// closes the race between concurrent registrations.
	exists, err := s.users.Exists(ctx, req.Email)
	if err != nil {
		return nil, &domain.StoreError{Op: "register", Err: err}
	}
	if exists {
		return nil, domain.ErrEmailTaken
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	otp, err := generateOtp()
	if err != nil {
		return nil, err
	}
	otpExpiresAt := time.Now().Add(s.config.Account.OtpTTL)

	user := &domain.User{
		Email:             req.Email,
		PasswordHash:      passwordHash,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Role:              req.Role,
		EmailConfirmed:    false,
		EmailOtp:          &otp,
		EmailOtpExpiresAt: &otpExpiresAt,
		IsActive:          true,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, &domain.StoreError{Op: "register", Err: err}
	}

	// The OTP is durably persisted at this point, so a delivery failure is
	// recoverable: the code is surfaced in the server log instead.
	if err := s.mailer.SendOtpEmail(created.Email, created.FirstName, otp); err != nil {
		logger.ErrorContext(ctx, "Failed to send OTP email", "error", err, "user_id", created.ID)
		logger.WarnContext(ctx, "OTP fallback", "email", created.Email, "otp", otp)
	}

	s.publish(ctx, events.AccountRegistered, events.AccountRegisteredEvent{
		UserID:    created.ID,
		Email:     created.Email,
		Role:      created.Role,
		CreatedAt: created.CreatedAt,
	})

	if err := sess.Set(ctx, session.KeyPendingEmail, created.Email); err != nil {
		return nil, fmt.Errorf("failed to mark pending verification: %w", err)
	}

	return created, nil
}

// PendingVerification reports which email is awaiting OTP confirmation for
// this session. The marker is cleared when the user is gone or already
// confirmed, so an abandoned flow cannot go stale.
func (s *accountService) PendingVerification(ctx context.Context, sess *session.Session) (string, bool, error) {
	email, err := sess.Get(ctx, session.KeyPendingEmail)
	if err != nil {
		return "", false, fmt.Errorf("failed to read session: %w", err)
	}
	if email == "" {
		return "", false, domain.ErrNoPendingVerification
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", false, &domain.StoreError{Op: "verify", Err: err}
	}
	if user == nil {
		_ = sess.Remove(ctx, session.KeyPendingEmail)
		return "", false, domain.ErrUserNotFound
	}
	if user.EmailConfirmed {
		_ = sess.Remove(ctx, session.KeyPendingEmail)
		return email, true, nil
	}

	return email, false, nil
}

func (s *accountService) VerifyOtp(ctx context.Context, sess *session.Session, otp string) (bool, error) {
	email, err := sess.Get(ctx, session.KeyPendingEmail)
	if err != nil {
		return false, fmt.Errorf("failed to read session: %w", err)
	}
	if email == "" {
		return false, domain.ErrNoPendingVerification
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return false, &domain.StoreError{Op: "verify", Err: err}
	}
	if user == nil {
		_ = sess.Remove(ctx, session.KeyPendingEmail)
		return false, domain.ErrUserNotFound
	}

	if user.EmailConfirmed {
		_ = sess.Remove(ctx, session.KeyPendingEmail)
		return true, nil
	}

	if user.EmailOtp == nil || user.EmailOtpExpiresAt == nil || time.Now().After(*user.EmailOtpExpiresAt) {
		return false, domain.ErrOtpExpired
	}
	if *user.EmailOtp != otp {
		return false, domain.ErrOtpMismatch
	}

	user.EmailConfirmed = true
	user.EmailOtp = nil
	user.EmailOtpExpiresAt = nil

	if err := s.users.Update(ctx, user); err != nil {
		return false, &domain.StoreError{Op: "verify", Err: err}
	}
	if err := sess.Remove(ctx, session.KeyPendingEmail); err != nil {
		logger.WarnContext(ctx, "Failed to clear pending verification marker", "error", err)
	}

	s.publish(ctx, events.AccountVerified, events.AccountVerifiedEvent{
		UserID:     user.ID,
		Email:      user.Email,
		VerifiedAt: time.Now(),
	})

	return false, nil
}

func (s *accountService) ResendOtp(ctx context.Context, sess *session.Session) (bool, error) {
	email, err := sess.Get(ctx, session.KeyPendingEmail)
	if err != nil {
		return false, fmt.Errorf("failed to read session: %w", err)
	}
	if email == "" {
		return false, domain.ErrNoPendingVerification
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return false, &domain.StoreError{Op: "resend", Err: err}
	}
	if user == nil {
		_ = sess.Remove(ctx, session.KeyPendingEmail)
		return false, domain.ErrUserNotFound
	}

	if user.EmailConfirmed {
		_ = sess.Remove(ctx, session.KeyPendingEmail)
		return true, nil
	}

	// Always a fresh code and a fresh expiry; the prior code is dead.
	otp, err := generateOtp()
	if err != nil {
		return false, err
	}
	otpExpiresAt := time.Now().Add(s.config.Account.OtpTTL)
	user.EmailOtp = &otp
	user.EmailOtpExpiresAt = &otpExpiresAt

	// Persist before sending so a delivery failure never strands the user
	// with a code that was mailed but not stored.
	if err := s.users.Update(ctx, user); err != nil {
		return false, &domain.StoreError{Op: "resend", Err: err}
	}

	if err := s.mailer.SendOtpEmail(user.Email, user.FirstName, otp); err != nil {
		logger.ErrorContext(ctx, "Failed to resend OTP email", "error", err, "user_id", user.ID)
		logger.WarnContext(ctx, "OTP fallback", "email", user.Email, "otp", otp)
	}

	return false, nil
}

func (s *accountService) ForgotPassword(ctx context.Context, email string) error {
	req := domain.ForgotPasswordRequest{Email: email}
	req.Normalize()
	if req.Email == "" {
		return fmt.Errorf("validation failed: email is required")
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return &domain.StoreError{Op: "forgot_password", Err: err}
	}
	if user == nil {
		return domain.ErrUserNotFound
	}

	token := newResetToken()
	expiresAt := time.Now().Add(s.config.Account.ResetTokenTTL)
	user.PasswordResetToken = &token
	user.PasswordResetExpiresAt = &expiresAt

	if err := s.users.Update(ctx, user); err != nil {
		return &domain.StoreError{Op: "forgot_password", Err: err}
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.config.App.BaseURL, token)
	if err := s.mailer.SendPasswordResetEmail(user.Email, user.FirstName, resetURL); err != nil {
		// No fallback channel for reset links; the caller must know.
		logger.ErrorContext(ctx, "Failed to send password reset email", "error", err, "user_id", user.ID)
		return &domain.DeliveryError{Err: err}
	}

	return nil
}

func (s *accountService) ResetPasswordLookup(ctx context.Context, token string) error {
	_, err := s.lookupResetToken(ctx, token)
	return err
}

func (s *accountService) ResetPassword(ctx context.Context, req *domain.ResetPasswordRequest) error {
	user, err := s.lookupResetToken(ctx, req.Token)
	if err != nil {
		return err
	}

	if req.NewPassword == "" {
		return fmt.Errorf("validation failed: new password is required")
	}
	if req.NewPassword != req.ConfirmPassword {
		return domain.ErrPasswordMismatch
	}
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	passwordHash, err := argon2id.CreateHash(req.NewPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = passwordHash
	user.PasswordResetToken = nil
	user.PasswordResetExpiresAt = nil

	if err := s.users.Update(ctx, user); err != nil {
		return &domain.StoreError{Op: "reset_password", Err: err}
	}

	s.publish(ctx, events.AccountPasswordReset, events.AccountPasswordResetEvent{
		UserID:  user.ID,
		Email:   user.Email,
		ResetAt: time.Now(),
	})

	return nil
}

// lookupResetToken resolves a live reset token. Tokens are not consumed
// here; they stay valid until a reset commit succeeds.
func (s *accountService) lookupResetToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrInvalidResetToken
	}

	user, err := s.users.GetByResetToken(ctx, token)
	if err != nil {
		return nil, &domain.StoreError{Op: "reset_password", Err: err}
	}
	if user == nil || user.PasswordResetExpiresAt == nil || time.Now().After(*user.PasswordResetExpiresAt) {
		return nil, domain.ErrInvalidResetToken
	}

	return user, nil
}

func (s *accountService) publish(ctx context.Context, subject string, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}
