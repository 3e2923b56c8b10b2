// Package auth guards remote sync. A device unlocks with the owner's
// passcode and holds a signed session token; while the token is valid
// the sync engine may talk to the mirror. Local operations never go
// through the gate.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadPasscode    = errors.New("auth: invalid passcode")
	ErrSessionExpired = errors.New("auth: session expired")
)

// Gate answers whether remote sync is currently allowed.
type Gate interface {
	Allowed(ctx context.Context) bool
	Reason() string
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Device string `json:"device"`
}

// SessionGate issues and verifies device session tokens. The passcode
// is stored as a bcrypt hash; a successful Unlock mints an HS256 token
// whose expiry bounds the session.
type SessionGate struct {
	mu           sync.RWMutex
	secret       []byte
	sessionTTL   time.Duration
	passcodeHash string
	token        string
	expiresAt    time.Time
}

func NewSessionGate(secret string, sessionTTL time.Duration, passcodeHash string) *SessionGate {
	if secret == "" {
		secret = "dev-change-me"
	}
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	return &SessionGate{
		secret:       []byte(secret),
		sessionTTL:   sessionTTL,
		passcodeHash: strings.TrimSpace(passcodeHash),
	}
}

// HashPasscode produces the bcrypt hash stored in configuration.
func HashPasscode(passcode string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Unlock verifies the passcode and starts a session. The returned token
// survives restarts when the caller persists it and hands it back via
// Resume.
func (g *SessionGate) Unlock(passcode string, device string) (string, error) {
	input := strings.TrimSpace(passcode)
	if input == "" || !isPasscodeHash(g.passcodeHash) {
		return "", ErrBadPasscode
	}
	if bcrypt.CompareHashAndPassword([]byte(g.passcodeHash), []byte(input)) != nil {
		return "", ErrBadPasscode
	}

	now := time.Now().UTC()
	expiresAt := now.Add(g.sessionTTL)
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "sync",
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "dairyd",
		},
		Device: device,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	g.token = token
	g.expiresAt = expiresAt
	g.mu.Unlock()
	return token, nil
}

// Resume restores a previously issued session token.
func (g *SessionGate) Resume(token string) error {
	claims, err := g.parse(token)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.token = token
	g.expiresAt = claims.ExpiresAt.Time
	g.mu.Unlock()
	return nil
}

// Lock ends the session immediately.
func (g *SessionGate) Lock() {
	g.mu.Lock()
	g.token = ""
	g.expiresAt = time.Time{}
	g.mu.Unlock()
}

func (g *SessionGate) Allowed(_ context.Context) bool {
	g.mu.RLock()
	token := g.token
	g.mu.RUnlock()
	if token == "" {
		return false
	}
	_, err := g.parse(token)
	return err == nil
}

func (g *SessionGate) Reason() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.token == "" {
		return "device locked"
	}
	if time.Now().UTC().After(g.expiresAt) {
		return "session expired"
	}
	return ""
}

func (g *SessionGate) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return g.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil, ErrSessionExpired
	}
	return claims, nil
}

func isPasscodeHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

// StaticGate is a fixed-answer gate for tests and single-device runs
// without a passcode configured.
type StaticGate struct {
	Open bool
	Why  string
}

func (g StaticGate) Allowed(_ context.Context) bool { return g.Open }

func (g StaticGate) Reason() string {
	if g.Open {
		return ""
	}
	if g.Why == "" {
		return "sync disabled"
	}
	return g.Why
}
