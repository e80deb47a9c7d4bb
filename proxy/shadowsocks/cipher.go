package shadowsocks

import (
	"crypto/cipher"
	"crypto/md5"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/netbot-proxy/netbot/common/crypto"
	"github.com/netbot-proxy/netbot/internal/xerrors"
)

// CipherKind identifies one of the AEAD ciphers Shadowsocks supports.
type CipherKind int

const (
	CipherAES128GCM CipherKind = iota
	CipherAES256GCM
	CipherChaCha20Poly1305
)

// Cipher describes one AEAD variant's key/salt sizes and how to build the
// AEAD itself from a derived subkey.
type Cipher struct {
	KeySize  int
	SaltSize int
	newAEAD  func(subkey []byte) (cipher.AEAD, error)
}

var ciphers = map[CipherKind]*Cipher{
	CipherAES128GCM: {
		KeySize:  16,
		SaltSize: 16,
		newAEAD: func(subkey []byte) (cipher.AEAD, error) {
			return safeNewAesGcm(subkey)
		},
	},
	CipherAES256GCM: {
		KeySize:  32,
		SaltSize: 32,
		newAEAD: func(subkey []byte) (cipher.AEAD, error) {
			return safeNewAesGcm(subkey)
		},
	},
	CipherChaCha20Poly1305: {
		KeySize:  32,
		SaltSize: 32,
		newAEAD: func(subkey []byte) (cipher.AEAD, error) {
			return chacha20poly1305.New(subkey)
		},
	},
}

func safeNewAesGcm(key []byte) (aead cipher.AEAD, err error) {
	defer func() {
		if r := recover(); r != nil {
			aead, err = nil, xerrors.New("failed to construct AES-GCM").WithKind(xerrors.KindUnsupportedAlgorithm)
		}
	}()
	return crypto.NewAesGcm(key), nil
}

// GetCipher looks up a Cipher by name, accepting the conventional
// Shadowsocks method strings.
func GetCipher(method string) (CipherKind, *Cipher, error) {
	switch method {
	case "aes-128-gcm":
		return CipherAES128GCM, ciphers[CipherAES128GCM], nil
	case "aes-256-gcm":
		return CipherAES256GCM, ciphers[CipherAES256GCM], nil
	case "chacha20-ietf-poly1305", "chacha20-poly1305-ietf", "chacha20-poly1305":
		return CipherChaCha20Poly1305, ciphers[CipherChaCha20Poly1305], nil
	default:
		return 0, nil, xerrors.New("unsupported shadowsocks cipher: ", method).WithKind(xerrors.KindUnsupportedAlgorithm)
	}
}

// KDFSubkey derives this AEAD's per-session subkey from the master key and
// session salt, per spec.md §4.4.
func (c *Cipher) KDFSubkey(masterKey, salt []byte) []byte {
	return crypto.HKDFSHA1Expand(masterKey, salt, []byte("ss-subkey"), c.KeySize)
}

// NewAEAD builds the cipher.AEAD for a session's derived subkey.
func (c *Cipher) NewAEAD(subkey []byte) (cipher.AEAD, error) {
	return c.newAEAD(subkey)
}

// DeriveMasterKey implements the standard EVP_BytesToKey-style Shadowsocks
// password-to-key derivation: repeated MD5 rounds, each round hashing the
// previous round's output concatenated with the password, until keySize
// bytes have been produced. (A few Shadowsocks server codebases in
// circulation mix in SHA-1 for rounds after the first; that is a
// nonstandard deviation this client does not follow — see DESIGN.md.)
func DeriveMasterKey(password string, keySize int) []byte {
	var result []byte
	var prev []byte
	for len(result) < keySize {
		h := md5.New()
		h.Write(prev)
		h.Write([]byte(password))
		sum := h.Sum(nil)
		result = append(result, sum...)
		prev = sum
	}
	return result[:keySize]
}
