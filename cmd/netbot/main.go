// Command netbot is the CLI entry point of spec.md §6: it parses the
// listener/outbound/config-file flags, builds a Supervisor, and runs it
// until an interrupt or terminate signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/netbot-proxy/netbot/internal/config"
	"github.com/netbot-proxy/netbot/internal/logging"
	"github.com/netbot-proxy/netbot/internal/xerrors"
	"github.com/netbot-proxy/netbot/proxy/socks"
	"github.com/netbot-proxy/netbot/transport/supervisor"
)

// Exit codes, per spec.md §6.
const (
	exitOK           = 0
	exitConfigError  = 1
	exitBindFailure  = 2
	exitFatalRuntime = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("netbot", flag.ContinueOnError)
	socksAddr := fs.String("socks-listen-address", "127.0.0.1", "SOCKS5 listener address")
	socksPort := fs.Int("socks-listen-port", 1080, "SOCKS5 listener port")
	httpAddr := fs.String("http-listen-address", "127.0.0.1", "HTTP CONNECT listener address")
	httpPort := fs.Int("http-listen-port", 8080, "HTTP CONNECT listener port")
	configFile := fs.String("config-file", "", "path to the NetbotConfiguration JSON file")
	outboundMode := fs.String("outbound-mode", "direct", "outbound selection: direct|proxy|rule")
	reqMsgFilter := fs.String("req-msg-filter", "", "comma-separated request message filter (external collaborator; accepted, not acted on)")
	enableHTTPCapture := fs.Bool("enable-http-capture", false, "enable HTTP request capture (external collaborator; accepted, not acted on)")
	enableMITM := fs.Bool("enable-mitm", false, "enable MitM (external collaborator; accepted, not acted on)")
	debug := fs.Bool("debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}
	// HTTP capture/MitM/filtering are external collaborators spec.md §1
	// places out of scope; the flags are accepted and parsed, but nothing
	// here acts on them or on the config file's replica block.
	_ = reqMsgFilter
	_ = enableHTTPCapture
	_ = enableMITM

	log, err := logging.New(*debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		return exitFatalRuntime
	}
	defer log.Sync()

	var cfg *config.NetbotConfiguration
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
		if err != nil {
			logging.LogError(log, "failed to load configuration", xerrors.New("config load failed").Base(err).AtError())
			return exitConfigError
		}
	} else {
		cfg = &config.NetbotConfiguration{}
	}

	outbound, err := resolveOutbound(cfg, *outboundMode)
	if err != nil {
		logging.LogError(log, "failed to resolve outbound", xerrors.New("outbound resolution failed").Base(err).AtError())
		return exitConfigError
	}

	sup := supervisor.New(supervisor.Config{
		SocksAddr:   joinHostPort(overrideOr(cfg.General.SocksListenAddress, *socksAddr), overrideOr(strconv.Itoa(cfg.General.SocksListenPort), strconv.Itoa(*socksPort))),
		HTTPAddr:    joinHostPort(overrideOr(cfg.General.HTTPListenAddress, *httpAddr), overrideOr(strconv.Itoa(cfg.General.HTTPListenPort), strconv.Itoa(*httpPort))),
		SocksConfig: &socks.Config{},
		Outbound:    outbound,
		Logger:      log,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sup.ListenAndServe(ctx); err != nil {
		logging.LogError(log, "supervisor exited with error", xerrors.New("supervisor failed").Base(err).AtError())
		if strings.Contains(err.Error(), "listen") {
			return exitBindFailure
		}
		return exitFatalRuntime
	}
	return exitOK
}

// resolveOutbound builds the Outbound a Supervisor dials through, per the
// --outbound-mode flag of spec.md §6. "direct" needs no configuration file.
// "proxy" selects the first configured policy group, falling back to the
// first policy if none is defined. "rule" would need the policy/rule
// routing selector spec.md §1 places out of scope; until an external
// collaborator supplies one, it behaves like "proxy".
func resolveOutbound(cfg *config.NetbotConfiguration, mode string) (supervisor.Outbound, error) {
	switch mode {
	case "direct":
		direct, err := config.NewOutbound(&config.NetbotConfiguration{
			Policies: []config.Policy{{Name: "direct", Type: "direct"}},
		}, "direct")
		return direct, err

	case "proxy", "rule":
		if len(cfg.PolicyGroups) > 0 {
			return config.NewOutbound(cfg, cfg.PolicyGroups[0].Name)
		}
		if len(cfg.Policies) > 0 {
			return config.NewOutbound(cfg, cfg.Policies[0].Name)
		}
		return nil, xerrors.New("outbound-mode ", mode, " requires at least one configured policy")

	default:
		return nil, xerrors.New("unknown outbound-mode: ", mode)
	}
}

func overrideOr(configured, flagValue string) string {
	if configured != "" && configured != "0" {
		return configured
	}
	return flagValue
}

func joinHostPort(host, port string) string {
	return host + ":" + port
}
