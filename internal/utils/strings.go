package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NormalizeSpace collapses repeated whitespace into a single space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RandomBase36 returns n random characters from [0-9a-z].
func RandomBase36(n int) string {
	var b strings.Builder
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms; fall back to clock bits.
			idx = big.NewInt(time.Now().UnixNano() % int64(len(base36Alphabet)))
		}
		b.WriteByte(base36Alphabet[idx.Int64()])
	}
	return b.String()
}

// BookingNumber builds "{prefix}-{epoch millis}-{4 base36 chars}".
func BookingNumber(prefix string, now time.Time) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "BK"
	}
	return prefix + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + RandomBase36(4)
}
