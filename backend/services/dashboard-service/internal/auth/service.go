package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidCredentials represents login failure.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	Operator  string    `json:"operator"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service authenticates the single configured operator.
type Service struct {
	operator     string
	passwordHash string
	hasher       Hasher
	tokenizer    *TokenService
	logger       *zap.Logger
}

// NewService builds Service.
func NewService(operator, passwordHash string, hasher Hasher, tokenizer *TokenService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		operator:     operator,
		passwordHash: passwordHash,
		hasher:       hasher,
		tokenizer:    tokenizer,
		logger:       logger,
	}
}

// Login checks the credentials and produces a JWT.
func (s *Service) Login(ctx context.Context, operator, password string) (*Session, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(operator), []byte(s.operator)) != 1 {
		s.logger.Warn("login rejected", zap.String("operator", operator))
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(s.passwordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.logger.Warn("login rejected", zap.String("operator", operator))
		} else {
			s.logger.Error("operator password hash unusable", zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokenizer.GenerateToken(operator)
	if err != nil {
		return nil, err
	}

	s.logger.Info("operator logged in", zap.String("operator", operator))
	return &Session{Token: token, Operator: operator, ExpiresAt: expiresAt}, nil
}

// Tokens exposes the validator for middleware.
func (s *Service) Tokens() *TokenService {
	return s.tokenizer
}
