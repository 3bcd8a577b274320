// Package auth provides Alpaca API key credentials.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables holding the credentials.
const (
	EnvKeyID     = "APCA_API_KEY_ID"
	EnvSecretKey = "APCA_API_SECRET_KEY"
	EnvBaseURL   = "APCA_API_BASE_URL"
)

// Header names used by the REST and streaming endpoints.
const (
	HeaderKeyID     = "APCA-API-KEY-ID"
	HeaderSecretKey = "APCA-API-SECRET-KEY"
)

// ErrMissingCredentials is returned when the key ID or secret is empty.
var ErrMissingCredentials = errors.New("missing API credentials")

// Credentials holds the API key pair and the trading API base URL.
type Credentials struct {
	KeyID     string // API key ID from the Alpaca dashboard
	SecretKey string // API secret key
	BaseURL   string // Trading API base URL (paper or live), informational
}

// LoadDotEnv loads variables from the given .env files (or ./.env when none
// are given). Variables already set in the environment win. A missing file
// is not an error.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// FromEnv reads credentials from APCA_API_KEY_ID, APCA_API_SECRET_KEY and
// APCA_API_BASE_URL.
func FromEnv() Credentials {
	return Credentials{
		KeyID:     strings.TrimSpace(os.Getenv(EnvKeyID)),
		SecretKey: strings.TrimSpace(os.Getenv(EnvSecretKey)),
		BaseURL:   strings.TrimSpace(os.Getenv(EnvBaseURL)),
	}
}

// Validate checks that both halves of the key pair are present.
func (c Credentials) Validate() error {
	var missing []string
	if c.KeyID == "" {
		missing = append(missing, EnvKeyID)
	}
	if c.SecretKey == "" {
		missing = append(missing, EnvSecretKey)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Apply sets the authentication headers on an HTTP header set.
func (c Credentials) Apply(h http.Header) {
	if c.KeyID != "" {
		h.Set(HeaderKeyID, c.KeyID)
	}
	if c.SecretKey != "" {
		h.Set(HeaderSecretKey, c.SecretKey)
	}
}

// Redacted returns the key ID with all but the last four characters masked,
// for log output.
func (c Credentials) Redacted() string {
	if len(c.KeyID) <= 4 {
		return strings.Repeat("*", len(c.KeyID))
	}
	return strings.Repeat("*", len(c.KeyID)-4) + c.KeyID[len(c.KeyID)-4:]
}
