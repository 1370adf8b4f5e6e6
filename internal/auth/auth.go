// Package auth issues and checks session tokens. Guests sign in anonymously;
// the barista signs in with the shared admin password.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"brewpulse/config"
)

// Role is carried by every session token.
type Role string

const (
	RoleGuest Role = "guest"
	RoleAdmin Role = "admin"
)

var (
	ErrInvalidPassword = errors.New("invalid admin password")
	ErrAdminDisabled   = errors.New("admin sign-in is not configured")
	ErrInvalidSession  = errors.New("invalid or expired session")
)

// Session is a signed capability token and what it grants.
type Session struct {
	Token     string    `json:"token"`
	Role      Role      `json:"role"`
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Service signs sessions with HS256 and remembers revoked ones until they
// would have expired.
type Service struct {
	key      []byte
	password string
	ttl      time.Duration
	now      func() time.Time
	revoked  *cache.Cache
}

// NewService creates a service from the auth config. Without a configured
// signing key a random one is generated, so sessions do not survive restarts.
func NewService(cfg config.AuthConfig) *Service {
	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		log.Println("auth.signing_key is not set; generating an ephemeral key")
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("auth: read random key: %v", err))
		}
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		key:      key,
		password: cfg.AdminPassword,
		ttl:      ttl,
		now:      time.Now,
		revoked:  cache.New(ttl, 10*time.Minute),
	}
}

// SignInAnon issues a guest session.
func (s *Service) SignInAnon() (Session, error) {
	return s.issue(RoleGuest)
}

// SignInAdmin issues an admin session if password matches.
func (s *Service) SignInAdmin(password string) (Session, error) {
	if s.password == "" {
		return Session{}, ErrAdminDisabled
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		return Session{}, ErrInvalidPassword
	}
	return s.issue(RoleAdmin)
}

// Verify checks the token signature, expiry and revocation.
func (s *Service) Verify(token string) (Session, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if c.Role != RoleGuest && c.Role != RoleAdmin {
		return Session{}, fmt.Errorf("%w: unknown role %q", ErrInvalidSession, c.Role)
	}
	if _, gone := s.revoked.Get(c.ID); gone {
		return Session{}, fmt.Errorf("%w: signed out", ErrInvalidSession)
	}
	return Session{Token: token, Role: c.Role, ID: c.ID, ExpiresAt: c.ExpiresAt.Time}, nil
}

// SignOut revokes the session. Signing out an invalid session is a no-op.
func (s *Service) SignOut(token string) {
	sess, err := s.Verify(token)
	if err != nil {
		return
	}
	remaining := sess.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return
	}
	s.revoked.Set(sess.ID, struct{}{}, remaining)
}

func (s *Service) issue(role Role) (Session, error) {
	now := s.now()
	sess := Session{Role: role, ID: uuid.NewString(), ExpiresAt: now.Add(s.ttl)}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   string(role),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	sess.Token = signed
	return sess, nil
}
