package core

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	lowerAlphaNum = "0123456789abcdefghijklmnopqrstuvwxyz"
	upperAlphaNum = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits        = "0123456789"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// RandomString returns a string of length n drawn from charset using crypto/rand.
func RandomString(n int, charset string) (string, error) {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b), nil
}

func RandomUpperAlphaNum(n int) (string, error) { return RandomString(n, upperAlphaNum) }
func RandomLowerAlphaNum(n int) (string, error) { return RandomString(n, lowerAlphaNum) }
func RandomDigits(n int) (string, error)        { return RandomString(n, digits) }

// NewReference builds a human-readable reference number: prefix + the last 6 digits of
// the unix-millis of now + randLen random uppercase alphanumeric characters, ie: APP123456X7K2QZ.
// Collisions are unlikely but possible; storage enforces uniqueness.
func NewReference(prefix string, now time.Time, randLen int) (string, error) {
	ms := fmt.Sprintf("%06d", (now.UnixNano()/int64(time.Millisecond))%1000000)
	suffix, err := RandomUpperAlphaNum(randLen)
	if err != nil {
		return "", err
	}
	return prefix + ms + suffix, nil
}
