package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint returns a stable hash of a normalized payload. encoding/json
// sorts map keys and fixes struct field order, so equal payloads always
// produce equal fingerprints.
func Fingerprint(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error fingerprinting payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CombineFingerprints derives one fingerprint from many, independent of
// input order. Used for cache keys spanning multiple observations.
func CombineFingerprints(fps []string) string {
	sorted := make([]string, len(fps))
	copy(sorted, fps)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "|")))
	return hex.EncodeToString(sum[:])
}
