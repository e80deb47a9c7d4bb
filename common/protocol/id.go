package protocol

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// IDBytesLen is the byte length of an ID and its derived command key.
const IDBytesLen = 16

// cmdKeySalt is VMESS's fixed AuthID/cmdKey derivation salt.
const cmdKeySalt = "c48619fe-8f02-49e0-b9e9-edf763e17e21"

// ID is a VMESS account identifier: a UUID plus its derived command key
// (spec.md §4.5's cmdKey, used to seed the per-connection AuthID and the
// AEAD header KDF).
type ID struct {
	uuid   uuid.UUID
	cmdKey [IDBytesLen]byte
}

// NewID derives an ID's command key from id's UUID bytes.
func NewID(id uuid.UUID) *ID {
	out := &ID{uuid: id}
	h := md5.New()
	h.Write(id[:])
	h.Write([]byte(cmdKeySalt))
	h.Sum(out.cmdKey[:0])
	return out
}

// Equals reports whether two IDs carry the same UUID.
func (id *ID) Equals(other *ID) bool {
	return id.uuid == other.uuid
}

// Bytes returns the underlying UUID's 16 bytes.
func (id *ID) Bytes() []byte {
	b := id.uuid
	return b[:]
}

// String renders the UUID in canonical form.
func (id *ID) String() string {
	return id.uuid.String()
}

// UUID returns the underlying UUID.
func (id *ID) UUID() uuid.UUID {
	return id.uuid
}

// CmdKey returns the 16-byte command key derived in NewID.
func (id ID) CmdKey() []byte {
	return id.cmdKey[:]
}
