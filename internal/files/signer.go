package files

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const signatureLen = 32

// LinkSigner signs public artifact links so that stored documents cannot be
// fetched by guessing their path
type LinkSigner struct {
	key []byte
}

// NewLinkSigner creates a signer for key
func NewLinkSigner(key []byte) (*LinkSigner, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("link signing key must be at least 16 bytes, got %d", len(key))
	}
	return &LinkSigner{key: append([]byte(nil), key...)}, nil
}

// NewRandomLinkSigner creates a signer with a random key. Links it signs do
// not survive a restart.
func NewRandomLinkSigner() (*LinkSigner, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate link signing key: %w", err)
	}
	return NewLinkSigner(key)
}

// Sign returns the signature of the artifact stored at p
func (s *LinkSigner) Sign(p string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(canonicalPath(p)))
	return hex.EncodeToString(mac.Sum(nil))[:signatureLen]
}

// Valid reports whether sig was produced by Sign for p
func (s *LinkSigner) Valid(p, sig string) bool {
	if len(sig) != signatureLen {
		return false
	}
	return hmac.Equal([]byte(s.Sign(p)), []byte(strings.ToLower(sig)))
}

func canonicalPath(p string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(p)), "/")
}
