package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainSnapshot is the domain prefix for snapshot content hashes.
// Version suffix enables future algorithm migration.
const DomainSnapshot = "stagehand/snapshot/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator
// prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash computes the content-addressed hash of a snapshot. The
// hash is stable across process restarts given the same recorded
// events.
func SnapshotHash(s *Snapshot) (string, error) {
	data, err := s.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("snapshot hash: %w", err)
	}
	return hashWithDomain(DomainSnapshot, data), nil
}
