package config

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// sessionKeyInfo binds derived keys to their use so the raw secret is never used directly.
const sessionKeyInfo = "address-lookup session cookie v1"

// sessionKeySize is the HMAC-SHA256 key length in bytes.
const sessionKeySize = 32

// SessionKey returns the key used to sign session cookies.
// With a configured secret the key is derived with HKDF-SHA256 and is stable across
// restarts. Without one a random key is generated; generated reports that case so the
// caller can warn that sessions will not survive a restart.
func (c *SessionConfig) SessionKey() (key []byte, generated bool, err error) {
	key = make([]byte, sessionKeySize)

	if c.Secret == "" {
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, false, fmt.Errorf("failed to generate session key: %w", err)
		}
		return key, true, nil
	}

	kdf := hkdf.New(sha256.New, []byte(c.Secret), nil, []byte(sessionKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, false, fmt.Errorf("failed to derive session key: %w", err)
	}
	return key, false, nil
}
