// Package crypto provides the cipher primitives every outbound protocol
// adapter builds its framing on: AEAD seal/open, stream-cipher XOR, AES-ECB
// and AES-CFB, HKDF/HMAC-SHA1, and a SHAKE128 infinite-stream reader.
package crypto

import (
	"crypto/rand"
	"math/big"
	"time"
)

// RandBetween returns a random int64 in [from, to).
func RandBetween(from int64, to int64) int64 {
	if from == to {
		return from
	}
	if from > to {
		from, to = to, from
	}
	bigInt, _ := rand.Int(rand.Reader, big.NewInt(to-from))
	return from + bigInt.Int64()
}

// RandDuration returns a random duration in [from, to) units.
func RandDuration(from int64, to int64, unit time.Duration) time.Duration {
	return time.Duration(RandBetween(from, to)) * unit
}
