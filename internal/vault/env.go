package vault

import (
	"crypto/subtle"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvAPIKey     = "BINANCE_API_KEY"
	EnvSecretKey  = "BINANCE_SECRET_KEY"
	EnvPassphrase = "TRADER_VAULT_PASSPHRASE"
)

// EnvVault sources the key pair from the process environment, optionally
// overlaid from a .env file. The unlock password is checked against an
// operator-set passphrase variable; when no passphrase is configured the
// vault opens to any non-empty password. This is plain environment
// plumbing, not cryptographic storage.
type EnvVault struct {
	ttl    time.Duration
	lookup func(string) string
}

type EnvOption func(*EnvVault)

func WithTTL(ttl time.Duration) EnvOption {
	return func(v *EnvVault) { v.ttl = ttl }
}

// NewEnvVault loads envFile when non-empty (missing files are tolerated so
// plain environment variables keep working) and returns the vault.
func NewEnvVault(envFile string, opts ...EnvOption) (*EnvVault, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	v := &EnvVault{
		ttl:    DefaultTTL,
		lookup: os.Getenv,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *EnvVault) HasStoredCredentials() bool {
	return strings.TrimSpace(v.lookup(EnvAPIKey)) != "" &&
		strings.TrimSpace(v.lookup(EnvSecretKey)) != ""
}

func (v *EnvVault) Unlock(password string) (*Session, error) {
	if password == "" {
		return nil, ErrBadPassword
	}
	if want := v.lookup(EnvPassphrase); want != "" {
		if subtle.ConstantTimeCompare([]byte(password), []byte(want)) != 1 {
			return nil, ErrBadPassword
		}
	}
	creds := Credentials{
		APIKey:    strings.TrimSpace(v.lookup(EnvAPIKey)),
		SecretKey: strings.TrimSpace(v.lookup(EnvSecretKey)),
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		return nil, ErrNoCredentials
	}
	return NewSession(creds, v.ttl)
}
