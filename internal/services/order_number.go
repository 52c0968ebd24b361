package services

import (
	"fmt"
	"strings"
	"time"
)

const defaultOrderNumberPrefix = "AG"

// orderNumber formats a human-readable order number from the generation date,
// a counter-issued sequence hint, and a high-entropy suffix. The suffix keeps
// numbers unique even when the sequence hint races or resets, so uniqueness
// never depends on a backend index.
func orderNumber(prefix string, now time.Time, seq int64, entropy string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultOrderNumberPrefix
	}
	return fmt.Sprintf("%s-%s-%06d-%s", prefix, now.UTC().Format("20060102"), seq, numberSuffix(entropy))
}

// numberSuffix takes the final four characters of the entropy source, which
// for a ULID are the fastest-varying bits of its randomness.
func numberSuffix(entropy string) string {
	entropy = strings.ToUpper(strings.TrimSpace(entropy))
	if len(entropy) <= 4 {
		return entropy
	}
	return entropy[len(entropy)-4:]
}
