package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for checksums. The version suffix allows a future
// algorithm migration without ambiguity.
const (
	DomainSnapshot = "matchstick/snapshot/v1"
	DomainBundle   = "matchstick/bundle/v1"
)

// HashWithDomain computes SHA256(domain || 0x00 || data) as lowercase hex.
// The null separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Checksum canonicalizes v and hashes it under domain.
// It returns the canonical bytes alongside the checksum so callers can
// store exactly what was hashed.
func Checksum(domain string, v any) (canonical []byte, sum string, err error) {
	canonical, err = MarshalGo(v)
	if err != nil {
		return nil, "", fmt.Errorf("checksum: %w", err)
	}
	return canonical, HashWithDomain(domain, canonical), nil
}

// Verify recomputes the checksum of a stored JSON document.
func Verify(domain string, data []byte, want string) (bool, error) {
	canonical, err := Canonicalize(data)
	if err != nil {
		return false, fmt.Errorf("verify: %w", err)
	}
	return HashWithDomain(domain, canonical) == want, nil
}
