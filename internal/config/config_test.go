package config_test

import (
	"context"
	stdnet "net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/internal/config"
)

const validConfigJSON = `{
  "general": {
    "socksListenAddress": "127.0.0.1",
    "socksListenPort": 1080,
    "httpListenAddress": "127.0.0.1",
    "httpListenPort": 8080
  },
  "policies": [
    {"name": "direct", "type": "direct"},
    {"name": "ss-1", "type": "shadowsocks", "serverAddress": "127.0.0.1", "serverPort": 8388, "method": "aes-128-gcm", "password": "hunter2"}
  ],
  "policyGroups": [
    {"name": "proxy", "type": "select", "policies": ["direct", "ss-1"]}
  ],
  "replica": {
    "enableHttpCapture": false,
    "enableMitm": false
  }
}`

func TestParseValidConfig(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(validConfigJSON))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.General.SocksListenAddress)
	assert.Equal(t, 1080, cfg.General.SocksListenPort)
	require.Len(t, cfg.Policies, 2)
	require.Len(t, cfg.PolicyGroups, 1)

	p, ok := cfg.PolicyByName("ss-1")
	require.True(t, ok)
	assert.Equal(t, "shadowsocks", p.Type)
}

func TestValidateRejectsUnknownPolicyGroupType(t *testing.T) {
	raw := `{"policies":[{"name":"direct","type":"direct"}],
	          "policyGroups":[{"name":"g","type":"bogus","policies":["direct"]}]}`
	_, err := config.Parse(strings.NewReader(raw))
	require.Error(t, err)
}

func TestValidateRejectsDuplicatePolicyNames(t *testing.T) {
	raw := `{"policies":[{"name":"direct","type":"direct"},{"name":"direct","type":"direct"}]}`
	_, err := config.Parse(strings.NewReader(raw))
	require.Error(t, err)
}

func TestValidateRejectsUnknownPolicyReference(t *testing.T) {
	raw := `{"policies":[{"name":"direct","type":"direct"}],
	          "policyGroups":[{"name":"g","type":"select","policies":["missing"]}]}`
	_, err := config.Parse(strings.NewReader(raw))
	require.Error(t, err)
}

func TestValidateRejectsUnsupportedPolicyType(t *testing.T) {
	raw := `{"policies":[{"name":"p","type":"carrier-pigeon"}]}`
	_, err := config.Parse(strings.NewReader(raw))
	require.Error(t, err)
}

// An Outbound built over a policy group round-robins its member policies
// across successive Dial calls.
func TestOutboundRoundRobinsAcrossGroupMembers(t *testing.T) {
	listenerA, err := stdnet.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listenerA.Close()
	listenerB, err := stdnet.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listenerB.Close()

	accept := func(l stdnet.Listener, tag string, got chan<- string) {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// aes-128-gcm's 16-byte salt, as a real server would send; Dial
		// itself does not read it, since the client reads its salt lazily.
		conn.Write(make([]byte, 16))
		got <- tag
	}

	hitsA := make(chan string, 1)
	hitsB := make(chan string, 1)
	go accept(listenerA, "A", hitsA)
	go accept(listenerB, "B", hitsB)

	hostA, portA, _ := stdnet.SplitHostPort(listenerA.Addr().String())
	hostB, portB, _ := stdnet.SplitHostPort(listenerB.Addr().String())
	pA, _ := strconv.Atoi(portA)
	pB, _ := strconv.Atoi(portB)

	cfg := &config.NetbotConfiguration{
		Policies: []config.Policy{
			{Name: "a", Type: "shadowsocks", ServerAddress: hostA, ServerPort: pA, Method: "aes-128-gcm", Password: "pw"},
			{Name: "b", Type: "shadowsocks", ServerAddress: hostB, ServerPort: pB, Method: "aes-128-gcm", Password: "pw"},
		},
		PolicyGroups: []config.PolicyGroup{
			{Name: "grp", Type: config.PolicyGroupTypeSelect, Policies: []string{"a", "b"}},
		},
	}

	outbound, err := config.NewOutbound(cfg, "grp")
	require.NoError(t, err)

	// Each Shadowsocks dialer connects to its own policy's serverAddress
	// regardless of dest, so the listener that accepts each Dial call
	// reveals which policy the round-robin picker chose.
	dest := net.TCPDestination(net.IPAddress(stdnet.ParseIP("93.184.216.34")), net.Port(80))
	for i := 0; i < 2; i++ {
		conn, err := outbound.Dial(context.Background(), dest)
		require.NoError(t, err)
		conn.Close()
	}

	assert.Equal(t, "A", <-hitsA)
	assert.Equal(t, "B", <-hitsB)
}
