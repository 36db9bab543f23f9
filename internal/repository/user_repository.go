package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pharmacare/accounts/internal/domain"
)

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByResetToken(ctx context.Context, token string) (*domain.User, error)
	Exists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	ValidateCredentials(ctx context.Context, email, password string) (bool, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userCols = `id, email, password_hash, first_name, last_name, role,
	email_confirmed, email_otp, email_otp_expires_at,
	password_reset_token, password_reset_expires_at,
	is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role,
		&u.EmailConfirmed, &u.EmailOtp, &u.EmailOtpExpiresAt,
		&u.PasswordResetToken, &u.PasswordResetExpiresAt,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(email) = lower($1)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *userRepository) GetByResetToken(ctx context.Context, token string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE password_reset_token = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, token))
}

func (r *userRepository) Exists(ctx context.Context, email string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, q, email).Scan(&exists)
	return exists, err
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	const q = `
		INSERT INTO users (email, password_hash, first_name, last_name, role,
			email_confirmed, email_otp, email_otp_expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	created, err := scanUser(r.pool.QueryRow(ctx, q,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role,
		user.EmailConfirmed, user.EmailOtp, user.EmailOtpExpiresAt, user.IsActive,
	))
	if err != nil {
		// The unique index on email closes the check-then-act race:
		// concurrent duplicate registrations fail here, not at Exists.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const q = `
		UPDATE users
		SET password_hash = $2,
			first_name = $3,
			last_name = $4,
			role = $5,
			email_confirmed = $6,
			email_otp = $7,
			email_otp_expires_at = $8,
			password_reset_token = $9,
			password_reset_expires_at = $10,
			is_active = $11,
			updated_at = now()
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q,
		user.ID, user.PasswordHash, user.FirstName, user.LastName, user.Role,
		user.EmailConfirmed, user.EmailOtp, user.EmailOtpExpiresAt,
		user.PasswordResetToken, user.PasswordResetExpiresAt, user.IsActive,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) ValidateCredentials(ctx context.Context, email, password string) (bool, error) {
	user, err := r.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	return argon2id.ComparePasswordAndHash(password, user.PasswordHash)
}
