package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// --- Error Definitions ---
var (
	ErrAuthenticationFailed = errors.New("authentication failed: invalid email or password")
	ErrTokenGeneration      = errors.New("failed to generate session token")
)

// AuthService authenticates the admin and issues the signed session
// credential. There is no admin user table: a single email plus bcrypt
// password hash come from configuration, and the session itself is a
// stateless HS256 JWT, so the server holds only the signing secret.
type AuthService interface {
	Login(ctx context.Context, email, password string) (token string, err error)
}

type authService struct {
	adminEmail        string
	adminPasswordHash string
	jwtSecret         string
	sessionTTL        time.Duration
	logger            *zap.Logger
	now               func() time.Time
}

// NewAuthService creates a new authService. sessionTTL falls back to 30 days
// when unset.
func NewAuthService(adminEmail, adminPasswordHash, jwtSecret string, sessionTTL time.Duration, logger *zap.Logger) AuthService {
	if jwtSecret == "" {
		panic("session signing secret cannot be empty")
	}
	if sessionTTL <= 0 {
		sessionTTL = 30 * 24 * time.Hour
	}
	return &authService{
		adminEmail:        adminEmail,
		adminPasswordHash: adminPasswordHash,
		jwtSecret:         jwtSecret,
		sessionTTL:        sessionTTL,
		logger:            logger,
		now:               time.Now,
	}
}

// AdminClaims defines the structure of the admin session JWT payload.
type AdminClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Login checks the configured admin credentials and returns a signed session
// token. Email comparison is constant-time alongside the bcrypt check so a
// probe cannot distinguish "unknown email" from "wrong password".
func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", ErrAuthenticationFailed
	}

	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.adminEmail)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(s.adminPasswordHash), []byte(password))
	if !emailOK || passErr != nil {
		s.logger.Warn("admin login rejected", zap.String("email", email))
		return "", ErrAuthenticationFailed
	}

	now := s.now()
	claims := &AdminClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
			Issuer:    "gardenplan",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", ErrTokenGeneration
	}

	s.logger.Info("admin session issued", zap.String("email", email))
	return signed, nil
}
