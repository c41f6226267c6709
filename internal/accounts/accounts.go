package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/playpool/billiards/internal/logger"
	"github.com/playpool/billiards/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidUsername    = errors.New("username must be 3-32 letters, digits, '_' or '-'")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrNotFound           = errors.New("user not found")
)

const (
	uniqueViolation   = "23505"
	minPasswordLength = 8
)

// Store keeps user accounts in Postgres.
type Store struct {
	db   *sqlx.DB
	cost int
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, cost: bcrypt.DefaultCost}
}

// ValidateUsername normalises and checks a username.
func ValidateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return "", ErrInvalidUsername
	}
	for _, r := range username {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-') || r > unicode.MaxASCII {
			return "", ErrInvalidUsername
		}
	}
	return username, nil
}

// HashPassword bcrypt-hashes a secret that is not an account password, such
// as a lobby password.
func HashPassword(secret string) (string, error) {
	return hashPassword(secret, bcrypt.DefaultCost)
}

// CheckPassword reports whether secret matches a hash from HashPassword.
func CheckPassword(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

func hashPassword(secret string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Register creates a user with a bcrypt-hashed password.
func (s *Store) Register(ctx context.Context, username, password string) (*models.User, error) {
	username, err := ValidateUsername(username)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := hashPassword(password, s.cost)
	if err != nil {
		return nil, err
	}

	var u models.User
	err = s.db.GetContext(ctx, &u,
		`INSERT INTO users (username, password_hash, created_at) VALUES ($1, $2, NOW())
		 RETURNING id, username, password_hash, created_at, last_login_at`,
		username, hash)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	logger.Log.Infow("[ACCT] user registered", "user_id", u.ID, "username", u.Username)
	return &u, nil
}

// Authenticate checks a username and password and stamps the login time.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, username, password_hash, created_at, last_login_at FROM users WHERE username=$1`,
		strings.TrimSpace(username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at=NOW() WHERE id=$1`, u.ID); err != nil {
		logger.Log.Warnw("[ACCT] failed to stamp login", "user_id", u.ID, "error", err)
	}
	return &u, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, username, password_hash, created_at, last_login_at FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &u, nil
}

// ChangePassword replaces a user's password after checking the current one.
func (s *Store) ChangePassword(ctx context.Context, id int64, current, next string) error {
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CheckPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	hash, err := hashPassword(next, s.cost)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, hash, id); err != nil {
		return fmt.Errorf("update password %d: %w", id, err)
	}
	logger.Log.Infow("[ACCT] password changed", "user_id", id)
	return nil
}
