// Package vault defines the credential contract the protocol client
// consumes: given an unlock password, a vault yields an API key pair bound
// to a time-limited session. How credentials are stored at rest is the
// vault implementation's concern and deliberately out of the client's
// sight; the client only ever sees a Session.
package vault

import (
	"errors"
	"time"
)

var (
	ErrLocked          = errors.New("vault is locked")
	ErrBadPassword     = errors.New("wrong vault password")
	ErrNoCredentials   = errors.New("no stored credentials")
	ErrSessionExpired  = errors.New("session expired, unlock again")
	ErrEmptyCredential = errors.New("api key and secret key must be non-empty")
)

// DefaultTTL bounds how long an unlocked session stays usable.
const DefaultTTL = 24 * time.Hour

type Credentials struct {
	APIKey    string
	SecretKey string
}

// Session is an explicit token minted by an unlock. There is no ambient
// global holding decrypted keys: whoever needs to sign requests holds a
// Session and must check Valid before each privileged call.
type Session struct {
	creds     Credentials
	expiresAt time.Time
	now       func() time.Time
}

// NewSession mints a session valid for ttl from now. A non-positive ttl
// falls back to DefaultTTL.
func NewSession(creds Credentials, ttl time.Duration) (*Session, error) {
	return newSessionAt(creds, ttl, time.Now)
}

func newSessionAt(creds Credentials, ttl time.Duration, now func() time.Time) (*Session, error) {
	if creds.APIKey == "" || creds.SecretKey == "" {
		return nil, ErrEmptyCredential
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Session{
		creds:     creds,
		expiresAt: now().Add(ttl),
		now:       now,
	}, nil
}

func (s *Session) Valid() bool {
	if s == nil {
		return false
	}
	return s.now().Before(s.expiresAt)
}

func (s *Session) ExpiresAt() time.Time {
	return s.expiresAt
}

// Credentials returns the key pair, failing once the session has lapsed.
func (s *Session) Credentials() (Credentials, error) {
	if !s.Valid() {
		return Credentials{}, ErrSessionExpired
	}
	return s.creds, nil
}

// Vault supplies an API key pair behind a password gate.
type Vault interface {
	// Unlock verifies the password and mints a fresh session.
	Unlock(password string) (*Session, error)
	// HasStoredCredentials reports whether the vault holds a key pair at all.
	HasStoredCredentials() bool
}
