// Package auth verifies the organizer's API token against its configured
// bcrypt hash.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamenight/internal/dependencies/clock"
)

// Errors
var (
	ErrInvalidToken = errors.New("invalid or missing token")
	ErrDisabled     = errors.New("organizer API is disabled")
)

// Grant is a verified token remembered so bcrypt runs once per window
type Grant struct {
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Config holds configuration for the auth service
type Config struct {
	// TokenHash is the bcrypt hash of the organizer token. Empty disables
	// the API.
	TokenHash string
	// GrantDuration is how long a verified token is trusted without
	// re-hashing
	GrantDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		GrantDuration: 15 * time.Minute,
	}
}

// Service checks organizer tokens
type Service struct {
	clock clock.Clock
	hash  []byte

	mu     sync.RWMutex
	grants map[string]*Grant

	grantDuration time.Duration
}

// New creates a new auth Service
func New(clock clock.Clock, cfg Config) *Service {
	if cfg.GrantDuration == 0 {
		cfg.GrantDuration = DefaultConfig().GrantDuration
	}
	return &Service{
		clock:         clock,
		hash:          []byte(cfg.TokenHash),
		grants:        make(map[string]*Grant),
		grantDuration: cfg.GrantDuration,
	}
}

// Enabled reports whether a token hash is configured
func (s *Service) Enabled() bool {
	return len(s.hash) > 0
}

// Authenticate checks a bearer token
func (s *Service) Authenticate(token string) (*Grant, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if token == "" {
		return nil, ErrInvalidToken
	}

	now := s.clock.Now()
	s.mu.RLock()
	grant, ok := s.grants[token]
	s.mu.RUnlock()
	if ok && now.Before(grant.ExpiresAt) {
		return grant, nil
	}

	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(token)); err != nil {
		return nil, ErrInvalidToken
	}

	grant = &Grant{
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.grantDuration),
	}
	s.mu.Lock()
	s.grants[token] = grant
	s.mu.Unlock()
	return grant, nil
}

// CleanExpiredGrants removes expired grants (call periodically)
func (s *Service) CleanExpiredGrants() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, grant := range s.grants {
		if !now.Before(grant.ExpiresAt) {
			delete(s.grants, token)
		}
	}
}

// GenerateToken returns a new random organizer token
func GenerateToken() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return "gn_" + base64.RawURLEncoding.EncodeToString(b)
}

// HashToken returns the bcrypt hash to configure for a token
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
