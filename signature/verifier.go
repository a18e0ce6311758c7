// Package signature validates webhook payloads signed with a shared secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

// Algorithm names the digest used for the HMAC, matching the header prefix.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
)

// Header names sent by the hosting service.
const (
	HeaderSHA1   = "X-Hub-Signature"
	HeaderSHA256 = "X-Hub-Signature-256"
)

// Verifier checks HMAC signatures against a process-wide secret.
type Verifier struct {
	secret []byte
}

// New creates a verifier. An empty secret makes every check fail.
func New(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Configured reports whether a secret is present.
func (v *Verifier) Configured() bool {
	return v != nil && len(v.secret) > 0
}

// Verify reports whether presented is a valid "<algo>=<hex>" signature of body.
func (v *Verifier) Verify(body []byte, presented string) bool {
	if !v.Configured() || presented == "" {
		return false
	}
	prefix, digest, ok := strings.Cut(presented, "=")
	if !ok {
		return false
	}
	newHash := hashFor(Algorithm(prefix))
	if newHash == nil {
		return false
	}
	got, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	mac := hmac.New(newHash, v.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the header value for body.
func Sign(secret string, body []byte, algo Algorithm) string {
	newHash := hashFor(algo)
	if newHash == nil {
		newHash = sha256.New
		algo = SHA256
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	return string(algo) + "=" + hex.EncodeToString(mac.Sum(nil))
}

func hashFor(algo Algorithm) func() hash.Hash {
	switch algo {
	case SHA1:
		return sha1.New
	case SHA256:
		return sha256.New
	default:
		return nil
	}
}
