package crypto

import (
	"crypto/hmac"
	"crypto/sha1"

	"golang.org/x/crypto/hkdf"
)

// HMACSHA1 computes HMAC-SHA1(key, msg).
func HMACSHA1(key, msg []byte) []byte {
	h := hmac.New(sha1.New, key)
	h.Write(msg)
	return h.Sum(nil)
}

// HKDFSHA1Expand derives length bytes from secret via HKDF-SHA1 (extract
// with salt, then expand with info), per spec.md §4.1. Shadowsocks's
// per-session subkey derivation calls this with info="ss-subkey" and
// salt=the session's fresh random salt.
func HKDFSHA1Expand(secret, salt, info []byte, length int) []byte {
	r := hkdf.New(sha1.New, secret, salt, info)
	out := make([]byte, length)
	if _, err := r.Read(out); err != nil {
		panic(err)
	}
	return out
}
