// Package shadowsocks implements the AEAD Shadowsocks stream of spec.md
// §4.4: per-session salt, HKDF-derived subkey, and length-then-payload AEAD
// chunk framing in each direction.
package shadowsocks

import (
	"crypto/rand"
	"io"

	"github.com/netbot-proxy/netbot/common/buf"
	"github.com/netbot-proxy/netbot/common/crypto"
	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/common/protocol"
	"github.com/netbot-proxy/netbot/internal/xerrors"
)

var addrParser = protocol.NewAddressParser(
	[]protocol.AddressFamilyByte{
		{Byte: 0x01, Family: net.AddressFamilyIPv4},
		{Byte: 0x04, Family: net.AddressFamilyIPv6},
		{Byte: 0x03, Family: net.AddressFamilyDomain},
	},
)

// Account holds one Shadowsocks endpoint's cipher and password-derived
// master key.
type Account struct {
	Cipher    *Cipher
	MasterKey []byte
}

// NewAccount derives an Account's master key from a method name and
// password.
func NewAccount(method, password string) (*Account, error) {
	_, c, err := GetCipher(method)
	if err != nil {
		return nil, err
	}
	return &Account{Cipher: c, MasterKey: DeriveMasterKey(password, c.KeySize)}, nil
}

// NewEncryptionWriter builds the outbound AEAD chunk writer for a new
// session: it generates a fresh random salt, writes it to writer, derives
// the session subkey, and returns a buf.Writer whose first WriteMultiBuffer
// call will carry the target-address header ahead of the caller's payload
// (spec.md §4.4: "First outbound write must be preceded by the ... target
// address header ... concatenated with the first payload bytes").
func (a *Account) NewEncryptionWriter(writer io.Writer, header *protocol.RequestHeader) (buf.Writer, error) {
	salt := make([]byte, a.Cipher.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, xerrors.New("failed to generate salt").Base(err)
	}
	if err := buf.WriteAllBytes(writer, salt); err != nil {
		return nil, xerrors.New("failed to write salt").Base(err)
	}

	subkey := a.Cipher.KDFSubkey(a.MasterKey, salt)
	aead, err := a.Cipher.NewAEAD(subkey)
	if err != nil {
		return nil, xerrors.New("failed to construct AEAD").Base(err).WithKind(xerrors.KindUnsupportedAlgorithm)
	}

	auth := &crypto.AEADAuthenticator{AEAD: aead, Nonce: crypto.NewCounterNonce(aead.NonceSize())}
	chunkWriter := crypto.NewAEADChunkWriter(writer, auth)

	headerBuf := buf.New()
	if err := addrParser.WriteAddressPort(headerBuf, header.Address, header.Port); err != nil {
		headerBuf.Release()
		return nil, xerrors.New("failed to encode target address header").Base(err)
	}

	return &leadingHeaderWriter{inner: chunkWriter, header: headerBuf}, nil
}

// leadingHeaderWriter prepends header's bytes onto the first
// WriteMultiBuffer call's payload, then forwards every subsequent call
// unchanged.
type leadingHeaderWriter struct {
	inner  buf.Writer
	header *buf.Buffer
}

func (w *leadingHeaderWriter) WriteMultiBuffer(mb buf.MultiBuffer) error {
	if w.header == nil {
		return w.inner.WriteMultiBuffer(mb)
	}
	header := w.header
	w.header = nil
	return w.inner.WriteMultiBuffer(append(buf.MultiBuffer{header}, mb...))
}

// NewDecryptionReader reads the session salt from reader and returns the
// AEAD chunk reader that decodes the remote's response stream.
func (a *Account) NewDecryptionReader(reader io.Reader) (buf.Reader, error) {
	salt := make([]byte, a.Cipher.SaltSize)
	if _, err := io.ReadFull(reader, salt); err != nil {
		return nil, xerrors.New("failed to read salt").Base(err).WithKind(xerrors.KindNeedMore)
	}
	return a.newDecryptionReaderFromSalt(reader, salt)
}

func (a *Account) newDecryptionReaderFromSalt(reader io.Reader, salt []byte) (buf.Reader, error) {
	subkey := a.Cipher.KDFSubkey(a.MasterKey, salt)
	aead, err := a.Cipher.NewAEAD(subkey)
	if err != nil {
		return nil, xerrors.New("failed to construct AEAD").Base(err).WithKind(xerrors.KindUnsupportedAlgorithm)
	}

	auth := &crypto.AEADAuthenticator{AEAD: aead, Nonce: crypto.NewCounterNonce(aead.NonceSize())}
	return crypto.NewAEADChunkReader(reader, auth), nil
}

// NewLazyDecryptionReader returns a buf.Reader that defers reading the
// session salt (and constructing the AEAD) until the first
// ReadMultiBuffer call, rather than blocking on it up front. The server
// only sends its salt after it has received the client's leading
// target-address header, which a.NewEncryptionWriter only flushes on the
// caller's first write — so an eager salt read here would deadlock a
// fresh Dial against a real server, the same way the teacher's FullReader
// defers consuming a prefix it hasn't read yet.
func (a *Account) NewLazyDecryptionReader(reader io.Reader) buf.Reader {
	return &lazyDecryptionReader{account: a, reader: reader}
}

type lazyDecryptionReader struct {
	account *Account
	reader  io.Reader
	inner   buf.Reader
}

func (r *lazyDecryptionReader) ReadMultiBuffer() (buf.MultiBuffer, error) {
	if r.inner == nil {
		salt := make([]byte, r.account.Cipher.SaltSize)
		if _, err := io.ReadFull(r.reader, salt); err != nil {
			return nil, xerrors.New("failed to read salt").Base(err).WithKind(xerrors.KindNeedMore)
		}
		inner, err := r.account.newDecryptionReaderFromSalt(r.reader, salt)
		if err != nil {
			return nil, err
		}
		r.inner = inner
	}
	return r.inner.ReadMultiBuffer()
}
