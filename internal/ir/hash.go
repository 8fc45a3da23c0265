package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm change.
const (
	DomainFile   = "blockstore/file/v1"
	DomainFields = "blockstore/fields/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the fingerprint the store assigns to file content.
// Identical bytes always hash to the same fingerprint, across bundles.
func ContentHash(data []byte) Fingerprint {
	return Fingerprint(hashWithDomain(DomainFile, data))
}

// FieldsHash returns a stable digest of a set of field values. It is
// independent of the fingerprint, so definitions that parse to the same
// values share a digest.
func FieldsHash(fields Dict) (string, error) {
	canonical, err := MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("FieldsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFields, canonical), nil
}
