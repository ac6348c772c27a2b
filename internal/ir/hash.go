package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainIR is the domain prefix for IR fingerprints.
// The version suffix leaves room for future algorithm migration.
const DomainIR = "bspgen/ir/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a content hash of x that is stable across runs and
// platforms. Two IRs share a fingerprint exactly when every field, including
// map order, is identical.
func Fingerprint(x *Ir) (string, error) {
	canonical, err := MarshalCanonical(canonicalForm(x))
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainIR, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when the IR is known to be valid.
func MustFingerprint(x *Ir) string {
	fp, err := Fingerprint(x)
	if err != nil {
		panic(err)
	}
	return fp
}
