package orders

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const numberSuffixAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// GenerateOrderNumber produces a prefix + timestamp + random-suffix order
// number. The suffix makes same-second collisions unlikely; the unique index
// on order_number plus a retry in the creator covers the rest.
func GenerateOrderNumber(prefix string, now time.Time) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("order number prefix required")
	}

	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("order number entropy: %w", err)
	}
	for i, b := range suffix {
		suffix[i] = numberSuffixAlphabet[int(b)%len(numberSuffixAlphabet)]
	}

	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102150405"), suffix), nil
}
