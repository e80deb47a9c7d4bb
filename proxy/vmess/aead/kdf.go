// Package aead implements the HMAC-chain key derivation VMESS's header AEAD
// layer uses to turn a cmdKey into per-purpose keys and nonces.
package aead

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

// KDFSaltConstVMessAEADKDF roots every VMESS AEAD KDF chain.
const KDFSaltConstVMessAEADKDF = "VMess AEAD KDF"

type hash2 struct {
	hash.Hash
}

// KDF derives a 32-byte key from key by HMAC-chaining through path, each
// path element becoming one more layer of nested HMAC keyed by that label.
func KDF(key []byte, path ...string) []byte {
	hmacf := hmac.New(sha256.New, []byte(KDFSaltConstVMessAEADKDF))

	for _, v := range path {
		first := true
		hmacf = hmac.New(func() hash.Hash {
			if first {
				first = false
				return hash2{hmacf}
			}
			return hmacf
		}, []byte(v))
	}
	hmacf.Write(key)
	return hmacf.Sum(nil)
}

// KDF16 derives a 16-byte key, the first 16 bytes of KDF's 32-byte output.
func KDF16(key []byte, path ...string) []byte {
	return KDF(key, path...)[:16]
}
