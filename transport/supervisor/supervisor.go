// Package supervisor implements the listener management and graceful
// shutdown of spec.md §4.9/§5: it accepts SOCKS5 and HTTP CONNECT
// connections on their configured listeners, hands each to a goroutine that
// runs it through the pipeline state machine, and tears every listener and
// in-flight connection down on cancellation.
package supervisor

import (
	"context"
	stdnet "net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/internal/logging"
	"github.com/netbot-proxy/netbot/internal/xerrors"
	"github.com/netbot-proxy/netbot/proxy/socks"
)

// Outbound dials the remote end of a tunnel for dest, returning a connected
// net.Conn whose protocol framing (Shadowsocks/VMESS/Trojan header) goes
// out with the first Write. internal/config builds concrete
// implementations (Shadowsocks/VMESS/Trojan clients) from the policy that
// selects them; Supervisor only needs this narrow interface.
type Outbound interface {
	Dial(ctx context.Context, dest net.Destination) (stdnet.Conn, error)
}

// Config configures one Supervisor instance.
type Config struct {
	SocksAddr string // empty disables the SOCKS5 listener
	HTTPAddr  string // empty disables the HTTP CONNECT listener

	// SocksConfig enables username/password subnegotiation on the SOCKS5
	// listener when it holds at least one account; nil or an account-less
	// config accepts only no-auth.
	SocksConfig *socks.Config

	Outbound Outbound
	Logger   *zap.Logger

	// IdleTimeout tears a tunneled connection down after this long without
	// activity in either direction. Zero selects a 5-minute default.
	IdleTimeout time.Duration
}

// Supervisor owns the inbound listeners and the pool of connections they
// have accepted.
type Supervisor struct {
	cfg Config

	mu        sync.Mutex
	listeners []stdnet.Listener
	wg        sync.WaitGroup
}

// New builds a Supervisor from cfg, defaulting IdleTimeout and Logger.
func New(cfg Config) *Supervisor {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Supervisor{cfg: cfg}
}

// ListenAndServe opens every configured listener and serves connections
// until ctx is cancelled, at which point every listener and in-flight
// connection is closed and ListenAndServe returns once they have all
// unwound.
func (s *Supervisor) ListenAndServe(ctx context.Context) error {
	if s.cfg.SocksAddr == "" && s.cfg.HTTPAddr == "" {
		return xerrors.New("supervisor: no listener addresses configured")
	}

	if s.cfg.SocksAddr != "" {
		ln, err := stdnet.Listen("tcp", s.cfg.SocksAddr)
		if err != nil {
			return xerrors.New("failed to listen for SOCKS5 on ", s.cfg.SocksAddr).Base(err)
		}
		s.addListener(ln)
		s.wg.Add(1)
		go s.acceptLoop(ctx, ln, s.serveSocks)
	}

	if s.cfg.HTTPAddr != "" {
		ln, err := stdnet.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			return xerrors.New("failed to listen for HTTP CONNECT on ", s.cfg.HTTPAddr).Base(err)
		}
		s.addListener(ln)
		s.wg.Add(1)
		go s.acceptLoop(ctx, ln, s.serveHTTPConnect)
	}

	<-ctx.Done()
	s.closeListeners()
	s.wg.Wait()
	return nil
}

func (s *Supervisor) addListener(ln stdnet.Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()
}

func (s *Supervisor) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ln := range s.listeners {
		ln.Close()
	}
}

// acceptLoop runs one listener's accept loop, dispatching every accepted
// connection to its own goroutine — the event-loop-per-connection
// assignment of spec.md §5, sized by the Go scheduler rather than a fixed
// worker pool.
func (s *Supervisor) acceptLoop(ctx context.Context, ln stdnet.Listener, serve func(context.Context, stdnet.Conn)) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logging.LogError(s.cfg.Logger, "accept failed", xerrors.New("accept failed").Base(err))
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			// Close conn on cancellation so a connection still blocked in
			// its handshake unwinds too.
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()
			serve(ctx, conn)
		}()
	}
}

// dialOutbound bounds Outbound.Dial (the TCP connect, plus the TLS
// handshake for Trojan) to a fixed 30-second timeout, distinct from the
// idle timeout runTunnel applies once tunneling begins.
func (s *Supervisor) dialOutbound(ctx context.Context, dest net.Destination) (stdnet.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.cfg.Outbound.Dial(dialCtx, dest)
}
