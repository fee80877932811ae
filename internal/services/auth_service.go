package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/brandonhuynh1/signage-api/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles admin accounts and token issuance
type AuthService struct {
	db     *sqlx.DB
	tokens *TokenManager
	cost   int
	logger zerolog.Logger
}

// LoginResult is returned by Login and Refresh
type LoginResult struct {
	TokenPair
	User *models.AdminUser `json:"user"`
}

// NewAuthService creates a new auth service
func NewAuthService(db *sqlx.DB, tokens *TokenManager, bcryptCost int, logger zerolog.Logger) *AuthService {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		db:     db,
		tokens: tokens,
		cost:   bcryptCost,
		logger: logger.With().Str("service", "auth").Logger(),
	}
}

// Tokens exposes the token manager for request authentication
func (s *AuthService) Tokens() *TokenManager {
	return s.tokens
}

// HasAdmin reports whether any admin account exists
func (s *AuthService) HasAdmin(ctx context.Context) (bool, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM admin_users)`); err != nil {
		return false, fmt.Errorf("failed to count admin users: %w", err)
	}
	return exists, nil
}

// CreateAdmin stores a new admin with a bcrypt-hashed password
func (s *AuthService) CreateAdmin(ctx context.Context, name, email, password string) (*models.AdminUser, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var user models.AdminUser
	err = s.db.GetContext(ctx, &user, `
		INSERT INTO admin_users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, password_hash, created_at, updated_at
	`, strings.TrimSpace(name), normalizeEmail(email), string(hash))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, BadRequest("Email already exists")
		}
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	s.logger.Info().Int64("userID", user.ID).Msg("Admin user created")
	return &user, nil
}

// Login checks credentials and issues a token pair
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, BadRequest("Invalid email or password")
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{TokenPair: *pair, User: user}, nil
}

// Refresh exchanges a valid refresh token for a new pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	var user models.AdminUser
	err = s.db.GetContext(ctx, &user, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM admin_users WHERE id = $1
	`, claims.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Unauthorized("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}

	pair, err := s.tokens.Issue(&user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{TokenPair: *pair, User: &user}, nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var user models.AdminUser
	err := s.db.GetContext(ctx, &user, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM admin_users WHERE email = $1
	`, normalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
