package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "address-lookup"

// ErrNoSession is returned by Lookup when the request carries no valid session cookie.
var ErrNoSession = errors.New("no valid session cookie")

// Claims carries the session ID in the token subject.
type Claims struct {
	jwt.RegisteredClaims
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	CookieName string
	Key        []byte
	MaxAge     time.Duration
	Secure     bool
}

// Manager issues and verifies the signed session cookie that identifies a browser session.
type Manager struct {
	opts ManagerOptions
	now  func() time.Time
}

// NewManager creates a Manager.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if len(opts.Key) == 0 {
		return nil, fmt.Errorf("session signing key is empty")
	}
	if opts.CookieName == "" {
		opts.CookieName = "address_session"
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 24 * time.Hour
	}
	return &Manager{opts: opts, now: time.Now}, nil
}

// Lookup returns the session ID carried by r, or ErrNoSession.
func (m *Manager) Lookup(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil {
		return "", ErrNoSession
	}
	id, err := m.validateToken(cookie.Value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return id, nil
}

// SessionID returns the session ID for r. When r has no valid session cookie a new
// session is started and its cookie is set on w.
func (m *Manager) SessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	if id, err := m.Lookup(r); err == nil {
		return id, nil
	}

	id := uuid.NewString()
	token, err := m.generateToken(id)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.opts.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

func (m *Manager) generateToken(sessionID string) (string, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.opts.MaxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.opts.Key)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}

func (m *Manager) validateToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("token string is empty")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.opts.Key, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("session token is not valid")
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("session token has malformed subject: %w", err)
	}
	return claims.Subject, nil
}
