package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	dErrors "ezclaim/pkg/domain-errors"
	"ezclaim/pkg/secrets"
)

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	GenerateAccessToken(subject string, scopes []string, expiresIn time.Duration) (string, error)
}

// Service authenticates demo users and issues scoped tokens.
type Service struct {
	users  map[string]User
	issuer TokenIssuer
	ttl    time.Duration
	logger *slog.Logger
}

// NewService creates a login service for users.
func NewService(users []User, issuer TokenIssuer, ttl time.Duration, logger *slog.Logger) *Service {
	byName := make(map[string]User, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	return &Service{users: byName, issuer: issuer, ttl: ttl, logger: logger}
}

// DemoUsers hashes the configured passwords for the admin and reader accounts.
func DemoUsers(adminPassword, readerPassword string) ([]User, error) {
	adminHash, err := secrets.Hash(adminPassword)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	readerHash, err := secrets.Hash(readerPassword)
	if err != nil {
		return nil, fmt.Errorf("hash reader password: %w", err)
	}
	return []User{
		{Username: "admin", PasswordHash: adminHash, Scopes: AllScopes},
		{Username: "reader", PasswordHash: readerHash, Scopes: ReadScopes},
	}, nil
}

// Login verifies the credentials and returns a bearer token.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenResult, error) {
	user, ok := s.users[req.Username]
	if !ok {
		s.logger.WarnContext(ctx, "login failed - unknown user", "username", req.Username)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := secrets.Verify(req.Password, user.PasswordHash); err != nil {
		if !errors.Is(err, secrets.ErrMismatch) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify credentials")
		}
		s.logger.WarnContext(ctx, "login failed - wrong password", "username", req.Username)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.issuer.GenerateAccessToken(user.Username, user.Scopes, s.ttl)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	s.logger.InfoContext(ctx, "token issued", "username", user.Username)
	return &TokenResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.ttl.Seconds()),
		Scope:       strings.Join(user.Scopes, " "),
	}, nil
}
