package crypto_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbot-proxy/netbot/common/buf"
	"github.com/netbot-proxy/netbot/common/crypto"
)

// Testable property 4: SHAKE128 determinism.
func TestShake128Determinism(t *testing.T) {
	s := crypto.NewShake128Stream(nil)
	s.Update([]byte("Yoda said, Do or do not. There is not try."))
	assert.Equal(t, "0C39568823BBFD6930A596644121AB98", s.Finalize())
}

// Testable property 6: ChaCha20-Poly1305 key derivation.
func TestGenerateChacha20Poly1305Key(t *testing.T) {
	in, err := hex.DecodeString("96b727f438a60a07ca1f554ec689862e")
	require.NoError(t, err)
	got := crypto.GenerateChacha20Poly1305Key(in)
	assert.Equal(t, "80c2c504eca628a44855d24e6a9478841d87e34a09027344ebf659d22fb2b88b", hex.EncodeToString(got))
}

func TestAESCFBRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, 16)
	iv := bytes.Repeat([]byte{0x02}, 16)
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	ciphertext := crypto.AESCFBEncrypt(key, iv, plaintext)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted := crypto.AESCFBDecrypt(key, iv, ciphertext)
	assert.Equal(t, plaintext, decrypted)
}

func TestAESECBRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x03}, 16)
	plaintext := []byte("a message that spans more than one AES block")

	ciphertext := crypto.AESECBEncrypt(key, plaintext)
	assert.Equal(t, 0, len(ciphertext)%16)

	decrypted, err := crypto.AESECBDecrypt(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAESECBSingleBlockRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x04}, 16)
	block := bytes.Repeat([]byte{0x05}, 16)

	ciphertext := crypto.AESECBEncryptSingleBlock(key, block)
	assert.Len(t, ciphertext, 16)

	decrypted := crypto.AESECBDecryptSingleBlock(key, ciphertext)
	assert.Equal(t, block, decrypted)
}

func TestHKDFSHA1ExpandIsDeterministic(t *testing.T) {
	secret := []byte("master-key-material")
	salt := bytes.Repeat([]byte{0x06}, 16)

	a := crypto.HKDFSHA1Expand(secret, salt, []byte("ss-subkey"), 16)
	b := crypto.HKDFSHA1Expand(secret, salt, []byte("ss-subkey"), 16)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	c := crypto.HKDFSHA1Expand(secret, bytes.Repeat([]byte{0x07}, 16), []byte("ss-subkey"), 16)
	assert.NotEqual(t, a, c, "a different salt must derive a different subkey")
}

// AEAD round trip, plus testable property 7 (tamper detection).
func TestAEADChunkRoundTripAndTamper(t *testing.T) {
	key := bytes.Repeat([]byte{0x08}, 16)
	aead := crypto.NewAesGcm(key)

	var wire bytes.Buffer
	writerAuth := &crypto.AEADAuthenticator{AEAD: aead, Nonce: crypto.NewCounterNonce(aead.NonceSize())}
	chunkWriter := crypto.NewAEADChunkWriter(&wire, writerAuth)

	payloads := [][]byte{[]byte("hello"), []byte("world, this is a longer chunk of payload bytes")}
	for _, p := range payloads {
		require.NoError(t, chunkWriter.WriteMultiBuffer(buf.MultiBuffer{buf.FromBytes(append([]byte(nil), p...))}))
	}

	readerAuth := &crypto.AEADAuthenticator{AEAD: aead, Nonce: crypto.NewCounterNonce(aead.NonceSize())}
	chunkReader := crypto.NewAEADChunkReader(bytes.NewReader(wire.Bytes()), readerAuth)

	for _, want := range payloads {
		mb, err := chunkReader.ReadMultiBuffer()
		require.NoError(t, err)
		got := buf.MergeBytes(mb, nil)
		assert.Equal(t, want, got)
	}

	// Flip a bit in the wire stream: decoding must now fail authentication.
	tampered := append([]byte(nil), wire.Bytes()...)
	tampered[0] ^= 0x01
	tamperAuth := &crypto.AEADAuthenticator{AEAD: aead, Nonce: crypto.NewCounterNonce(aead.NonceSize())}
	tamperedReader := crypto.NewAEADChunkReader(bytes.NewReader(tampered), tamperAuth)
	_, err := tamperedReader.ReadMultiBuffer()
	require.Error(t, err)
}
