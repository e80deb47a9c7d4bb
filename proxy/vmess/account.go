// Package vmess implements the VMESS client tunnel of spec.md §4.5: header
// AEAD encode/decode and the chunked AEAD body framing that follows it.
package vmess

import (
	"github.com/google/uuid"

	"github.com/netbot-proxy/netbot/common/protocol"
)

// Account is a VMESS endpoint's credentials: its ID and the AEAD cipher
// the client negotiates for the session.
type Account struct {
	ID       *protocol.ID
	Security protocol.SecurityType
}

// NewAccount builds an Account from a UUID string and security setting.
func NewAccount(id string, security protocol.SecurityType) (*Account, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return &Account{ID: protocol.NewID(parsed), Security: security}, nil
}
