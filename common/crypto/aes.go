package crypto

import (
	"crypto/aes"
	"crypto/cipher"
)

func mustCipher(key []byte) cipher.Block {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	return block
}

// NewAesDecryptionStream creates an AES-CFB decryption stream. Caller must
// ensure key is 16, 24 or 32 bytes and iv is 16 bytes.
func NewAesDecryptionStream(key []byte, iv []byte) cipher.Stream {
	return cipher.NewCFBDecrypter(mustCipher(key), iv)
}

// NewAesEncryptionStream creates an AES-CFB encryption stream.
func NewAesEncryptionStream(key []byte, iv []byte) cipher.Stream {
	return cipher.NewCFBEncrypter(mustCipher(key), iv)
}

// NewAesCTRStream creates an AES-CTR stream cipher.
func NewAesCTRStream(key []byte, iv []byte) cipher.Stream {
	return cipher.NewCTR(mustCipher(key), iv)
}

// NewAesGcm creates an AES-GCM AEAD.
func NewAesGcm(key []byte) cipher.AEAD {
	aead, err := cipher.NewGCM(mustCipher(key))
	if err != nil {
		panic(err)
	}
	return aead
}

// AESCFBEncrypt implements spec's aes128_cfb_encrypt: a one-shot, no-padding
// AES-CFB encryption of data given a 16-byte key and iv.
func AESCFBEncrypt(key, iv, data []byte) []byte {
	out := make([]byte, len(data))
	NewAesEncryptionStream(key, iv).XORKeyStream(out, data)
	return out
}

// AESCFBDecrypt implements spec's aes128_cfb_decrypt.
func AESCFBDecrypt(key, iv, data []byte) []byte {
	out := make([]byte, len(data))
	NewAesDecryptionStream(key, iv).XORKeyStream(out, data)
	return out
}

// AESECBEncryptSingleBlock encrypts exactly one 16-byte block with AES-128
// in ECB mode — the VMESS authID construction's sole use of ECB, never
// padded or chained.
func AESECBEncryptSingleBlock(key, block []byte) []byte {
	out := make([]byte, len(block))
	mustCipher(key).Encrypt(out, block)
	return out
}

// AESECBDecryptSingleBlock decrypts one 16-byte ECB block.
func AESECBDecryptSingleBlock(key, block []byte) []byte {
	out := make([]byte, len(block))
	mustCipher(key).Decrypt(out, block)
	return out
}

// AESECBEncrypt encrypts data (PKCS7-padded to the block size) with AES-128
// in ECB mode.
func AESECBEncrypt(key, data []byte) []byte {
	block := mustCipher(key)
	padded := pkcs7Pad(data, block.BlockSize())
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += block.BlockSize() {
		block.Encrypt(out[i:i+block.BlockSize()], padded[i:i+block.BlockSize()])
	}
	return out
}

// AESECBDecrypt decrypts data produced by AESECBEncrypt and strips its
// PKCS7 padding.
func AESECBDecrypt(key, data []byte) ([]byte, error) {
	block := mustCipher(key)
	bs := block.BlockSize()
	if len(data)%bs != 0 || len(data) == 0 {
		return nil, errInvalidECBLength
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		block.Decrypt(out[i:i+bs], data[i:i+bs])
	}
	return pkcs7Unpad(out, bs)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errInvalidECBLength
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errInvalidECBPadding
	}
	return data[:len(data)-padLen], nil
}
