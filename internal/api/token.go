package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// TokenPeriod is the length of one token window.
const TokenPeriod = 2 * 24 * time.Hour

// tokenLength is the number of hex characters kept from the MAC.
const tokenLength = 20

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// TokenSigner issues and checks handler URL tokens.
//
// Thread-safety: TokenSigner is safe for concurrent use.
type TokenSigner struct {
	secret []byte
	clock  Clock
}

// NewTokenSigner creates a signer keyed by secret. A nil clock uses the
// system clock.
func NewTokenSigner(secret []byte, clock Clock) (*TokenSigner, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token signer: secret key is required")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &TokenSigner{secret: secret, clock: clock}, nil
}

// Token returns the token for userID and usageKey in the current window.
func (s *TokenSigner) Token(userID int64, usageKey string) string {
	return s.tokenAt(s.window(), userID, usageKey)
}

// Validate reports whether token was issued for userID and usageKey in the
// current or the previous window.
func (s *TokenSigner) Validate(userID int64, usageKey, token string) bool {
	w := s.window()
	for _, candidate := range []int64{w, w - 1} {
		expected := s.tokenAt(candidate, userID, usageKey)
		if hmac.Equal([]byte(expected), []byte(token)) {
			return true
		}
	}
	return false
}

func (s *TokenSigner) window() int64 {
	return s.clock.Now().Unix() / int64(TokenPeriod/time.Second)
}

func (s *TokenSigner) tokenAt(window, userID int64, usageKey string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%d:%d:%s", window, userID, usageKey)
	return hex.EncodeToString(mac.Sum(nil))[:tokenLength]
}
