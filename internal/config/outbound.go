package config

import (
	"context"
	"crypto/tls"
	stdnet "net"
	"strconv"

	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/common/protocol"
	"github.com/netbot-proxy/netbot/internal/xerrors"
	"github.com/netbot-proxy/netbot/proxy/shadowsocks"
	"github.com/netbot-proxy/netbot/proxy/trojan"
	"github.com/netbot-proxy/netbot/proxy/vmess"
)

// dialer is one policy's resolved outbound dialer, closing over whatever
// per-protocol account/credential it needs. Built once by NewOutbound
// and reused for every Dial call.
type dialer func(ctx context.Context, dest net.Destination) (stdnet.Conn, error)

func buildDialer(p Policy) (dialer, error) {
	kind, err := p.outboundKind()
	if err != nil {
		return nil, err
	}

	serverAddr := stdnet.JoinHostPort(p.ServerAddress, strconv.Itoa(p.ServerPort))

	switch kind {
	case OutboundDirect:
		return func(ctx context.Context, dest net.Destination) (stdnet.Conn, error) {
			var d stdnet.Dialer
			return d.DialContext(ctx, "tcp", dest.NetAddr())
		}, nil

	case OutboundShadowsocks:
		account, err := shadowsocks.NewAccount(p.Method, p.Password)
		if err != nil {
			return nil, xerrors.New("policy ", p.Name, ": invalid shadowsocks credential").Base(err)
		}
		return func(ctx context.Context, dest net.Destination) (stdnet.Conn, error) {
			header := protocol.RequestHeader{
				Command: protocol.RequestCommandTCP,
				Address: dest.Address,
				Port:    dest.Port,
			}
			conn, err := shadowsocks.Dial(ctx, serverAddr, account, header)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}, nil

	case OutboundVmess:
		security := vmessSecurity(p.Security)
		account, err := vmess.NewAccount(p.UserID, security)
		if err != nil {
			return nil, xerrors.New("policy ", p.Name, ": invalid vmess user id").Base(err)
		}
		return func(ctx context.Context, dest net.Destination) (stdnet.Conn, error) {
			header := protocol.RequestHeader{
				Version:  1,
				Command:  protocol.RequestCommandTCP,
				Security: security,
				Address:  dest.Address,
				Port:     dest.Port,
			}
			conn, err := vmess.Dial(ctx, serverAddr, account, header)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}, nil

	case OutboundTrojan:
		tlsConfig := &tls.Config{ServerName: p.SNI, InsecureSkipVerify: p.SkipCertVerify}
		if tlsConfig.ServerName == "" {
			tlsConfig.ServerName = p.ServerAddress
		}
		return func(ctx context.Context, dest net.Destination) (stdnet.Conn, error) {
			return trojan.Dial(ctx, serverAddr, tlsConfig, p.Password, dest)
		}, nil

	default:
		return nil, xerrors.New("policy ", p.Name, ": unreachable outbound kind")
	}
}

func vmessSecurity(s string) protocol.SecurityType {
	switch s {
	case "aes-128-gcm":
		return protocol.SecurityTypeAES128GCM
	case "chacha20-poly1305":
		return protocol.SecurityTypeChaCha20Poly1305
	case "none":
		return protocol.SecurityTypeNone
	default:
		return protocol.SecurityTypeAuto
	}
}

// Outbound implements transport/supervisor.Outbound over a
// NetbotConfiguration: a single policy dials straight through; a policy
// group resolves one member policy per Dial call via its ServerPicker (a
// round-robin selector over named policies, per spec.md §9's "select"
// design note).
type Outbound struct {
	dialers map[string]dialer
	group   protocol.ServerPicker
}

// NewOutbound resolves the outbound named selection (a policy or policy
// group name) into a ready-to-dial Outbound.
func NewOutbound(cfg *NetbotConfiguration, selection string) (*Outbound, error) {
	dialers := make(map[string]dialer, len(cfg.Policies))
	for _, p := range cfg.Policies {
		d, err := buildDialer(p)
		if err != nil {
			return nil, err
		}
		dialers[p.Name] = d
	}

	if _, ok := dialers[selection]; ok {
		specs := []*protocol.ServerSpec{{Name: selection, Value: selection}}
		return &Outbound{dialers: dialers, group: protocol.NewRoundRobinServerPicker(specs)}, nil
	}

	for _, g := range cfg.PolicyGroups {
		if g.Name != selection {
			continue
		}
		specs := make([]*protocol.ServerSpec, 0, len(g.Policies))
		for _, ref := range g.Policies {
			specs = append(specs, &protocol.ServerSpec{Name: ref, Value: ref})
		}
		return &Outbound{dialers: dialers, group: protocol.NewRoundRobinServerPicker(specs)}, nil
	}

	return nil, xerrors.New("unknown outbound selection: ", selection)
}

// Dial implements transport/supervisor.Outbound: it picks the next policy
// in the selection's round-robin order and dials dest through it.
func (o *Outbound) Dial(ctx context.Context, dest net.Destination) (stdnet.Conn, error) {
	spec := o.group.PickServer()
	if spec == nil {
		return nil, xerrors.New("no outbound policy available")
	}
	name := spec.Value.(string)
	d, ok := o.dialers[name]
	if !ok {
		return nil, xerrors.New("outbound policy not found: ", name)
	}
	return d(ctx, dest)
}
