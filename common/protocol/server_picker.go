package protocol

// ServerSpec names one candidate endpoint a ServerPicker can choose
// between. It is generic over the caller's own per-endpoint payload (a
// dial address, credentials, whatever the caller needs back out).
type ServerSpec struct {
	Name string
	// Value is caller-defined; internal/config stores the selected
	// policy's name here and resolves it back through its own registry.
	Value interface{}
}

// ServerPicker selects one ServerSpec from a fixed list, per spec.md §9's
// "select" policy group.
type ServerPicker interface {
	PickServer() *ServerSpec
}

// roundRobinServerPicker cycles through its server list on every call,
// grounded on the teacher's protocol.RoundRobinServerPicker (seen wired
// into proxy/trojan/client.go and proxy/socks/client.go in the retrieved
// pack).
type roundRobinServerPicker struct {
	servers []*ServerSpec
	next    int
}

// NewRoundRobinServerPicker builds a ServerPicker over servers, starting at
// index 0.
func NewRoundRobinServerPicker(servers []*ServerSpec) ServerPicker {
	return &roundRobinServerPicker{servers: servers}
}

// PickServer returns the next server in round-robin order, wrapping back to
// the start once the list is exhausted. Returns nil if the list is empty.
func (p *roundRobinServerPicker) PickServer() *ServerSpec {
	if len(p.servers) == 0 {
		return nil
	}
	s := p.servers[p.next%len(p.servers)]
	p.next++
	return s
}
