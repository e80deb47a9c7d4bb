// Package config loads the JSON NetbotConfiguration file of spec.md §6:
// listen addresses under "general", outbound endpoint definitions under
// "policies", outbound-selection groups under "policyGroups", and MitM/
// filter toggles under "replica" (accepted but otherwise inert — HTTP
// capture and MitM are explicit spec.md §1 out-of-scope collaborators).
// No schema library is used, matching the plain-struct-tag texture of the
// teacher's own infra/conf JSON loading.
package config

import (
	"encoding/json"
	"io"
	"os"

	"github.com/netbot-proxy/netbot/internal/xerrors"
)

// General holds the listener addresses and bypass rules of spec.md §6's CLI
// surface, expressed as config-file fields instead of flags so both sources
// feed the same struct (cmd/netbot uses each field that is set here and
// falls back to the flag value otherwise).
type General struct {
	SocksListenAddress string   `json:"socksListenAddress"`
	SocksListenPort    int      `json:"socksListenPort"`
	HTTPListenAddress  string   `json:"httpListenAddress"`
	HTTPListenPort     int      `json:"httpListenPort"`
	Exclusions         []string `json:"exclusions"`
}

// Replica holds the MitM/HTTP-capture toggles spec.md §1 names as an
// external collaborator; the core only needs to carry them through,
// never act on them.
type Replica struct {
	EnableHTTPCapture bool     `json:"enableHttpCapture"`
	EnableMITM        bool     `json:"enableMitm"`
	ReqMsgFilter      []string `json:"reqMsgFilter"`
}

// NetbotConfiguration is the top-level JSON document of spec.md §6.
type NetbotConfiguration struct {
	General      General       `json:"general"`
	Policies     []Policy      `json:"policies"`
	PolicyGroups []PolicyGroup `json:"policyGroups"`
	Replica      Replica       `json:"replica"`
}

// Load reads and parses a NetbotConfiguration from path.
func Load(path string) (*NetbotConfiguration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.New("failed to open config file: ", path).Base(err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads and parses a NetbotConfiguration from r.
func Parse(r io.Reader) (*NetbotConfiguration, error) {
	var cfg NetbotConfiguration
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, xerrors.New("failed to parse config file").Base(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every policy group names policies that actually
// exist and that every policy group's discriminator is recognized.
func (c *NetbotConfiguration) Validate() error {
	names := make(map[string]struct{}, len(c.Policies))
	for _, p := range c.Policies {
		if p.Name == "" {
			return xerrors.New("policy missing a name")
		}
		if _, dup := names[p.Name]; dup {
			return xerrors.New("duplicate policy name: ", p.Name)
		}
		names[p.Name] = struct{}{}
		if _, err := p.outboundKind(); err != nil {
			return err
		}
	}

	for _, g := range c.PolicyGroups {
		if g.Type != PolicyGroupTypeSelect {
			return xerrors.New("unknown policy group type: ", g.Type).WithKind(xerrors.KindUnsupportedAlgorithm)
		}
		if len(g.Policies) == 0 {
			return xerrors.New("policy group has no policies: ", g.Name)
		}
		for _, ref := range g.Policies {
			if _, ok := names[ref]; !ok {
				return xerrors.New("policy group ", g.Name, " references unknown policy ", ref)
			}
		}
	}
	return nil
}

// PolicyByName returns the policy named name, or false if none exists.
func (c *NetbotConfiguration) PolicyByName(name string) (Policy, bool) {
	for _, p := range c.Policies {
		if p.Name == name {
			return p, true
		}
	}
	return Policy{}, false
}
