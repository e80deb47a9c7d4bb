package config

import (
	"github.com/netbot-proxy/netbot/internal/xerrors"
)

// OutboundKind identifies which protocol adapter a Policy dials through.
type OutboundKind int

const (
	OutboundDirect OutboundKind = iota
	OutboundShadowsocks
	OutboundVmess
	OutboundTrojan
)

// Policy is one outbound endpoint definition under the "policies" config
// key: spec.md §6 names only "listen endpoints, outbound kind, outbound
// endpoint, and per-protocol credential" as what the core consumes from
// NetbotConfiguration, which these fields cover directly.
type Policy struct {
	Name string `json:"name"`
	Type string `json:"type"`

	ServerAddress string `json:"serverAddress"`
	ServerPort    int    `json:"serverPort"`

	// Shadowsocks
	Method   string `json:"method,omitempty"`
	Password string `json:"password,omitempty"`

	// VMESS
	UserID   string `json:"userId,omitempty"`
	Security string `json:"security,omitempty"`

	// Trojan
	SNI            string `json:"sni,omitempty"`
	SkipCertVerify bool   `json:"skipCertVerify,omitempty"`
}

func (p *Policy) outboundKind() (OutboundKind, error) {
	switch p.Type {
	case "direct":
		return OutboundDirect, nil
	case "shadowsocks":
		return OutboundShadowsocks, nil
	case "vmess":
		return OutboundVmess, nil
	case "trojan":
		return OutboundTrojan, nil
	default:
		return 0, xerrors.New("unknown outbound type: ", p.Type).WithKind(xerrors.KindUnsupportedAlgorithm)
	}
}

// PolicyGroupType is the "type" discriminator of a policy group's tagged
// variant (spec.md §9 design note: "a boxed existential with custom coding
// maps to a tagged variant {Select { name, policies }} with room for
// future variants").
type PolicyGroupType string

// PolicyGroupTypeSelect is the only recognized variant; anything else is
// rejected with UnknownPolicyGroupType per spec.md §6.
const PolicyGroupTypeSelect PolicyGroupType = "select"

// PolicyGroup is a named selection group over policies, keyed by the
// "type" discriminator field.
type PolicyGroup struct {
	Name     string          `json:"name"`
	Type     PolicyGroupType `json:"type"`
	Policies []string        `json:"policies"`
}
