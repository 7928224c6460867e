// Command zentinel-agent-demo runs a path-policy agent on a local socket.
//
// The policy comes from a YAML file; the proxy can layer a blocklist on top
// at runtime through configure_update events.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zentinelproxy/zentinel-agent-go/agent"
	"github.com/zentinelproxy/zentinel-agent-go/internal/cmdutil"
	"github.com/zentinelproxy/zentinel-agent-go/internal/version"
	"github.com/zentinelproxy/zentinel-agent-go/observability"
	"github.com/zentinelproxy/zentinel-agent-go/observability/prom"
	"github.com/zentinelproxy/zentinel-agent-go/serve"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
)

func main() {
	fs := flag.NewFlagSet("zentinel-agent-demo", flag.ContinueOnError)
	socketPath := fs.String("socket", cmdutil.EnvString("ZENTINEL_AGENT_SOCKET", "/run/zentinel/agent.sock"), "unix socket path to serve on")
	policyPath := fs.String("policy", cmdutil.EnvString("ZENTINEL_AGENT_POLICY", "policy.yaml"), "path to the YAML policy file")
	failureMode := fs.String("failure-mode", cmdutil.EnvString("ZENTINEL_AGENT_FAILURE_MODE", "open"), "decision on callback fault: open or closed")
	protocolVersion := fs.Int("protocol-version", 2, "protocol version to speak (1 disables the handshake)")
	metricsListen := fs.String("metrics-listen", cmdutil.EnvString("ZENTINEL_AGENT_METRICS_LISTEN", ""), "optional address for the Prometheus /metrics endpoint")
	wsListen := fs.String("ws-listen", cmdutil.EnvString("ZENTINEL_AGENT_WS_LISTEN", ""), "optional address to also serve the protocol over WebSocket")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if *showVersion {
		fmt.Println(version.String(buildVersion, buildCommit))
		return
	}

	logger := log.New(os.Stderr, "zentinel-agent-demo: ", log.LstdFlags)

	policy, err := LoadPolicy(*policyPath)
	if err != nil {
		logger.Fatalf("load policy: %v", err)
	}

	obs := observability.NewAtomicSessionObserver()
	opts := []serve.Option{
		serve.WithFailureMode(agent.FailureMode(*failureMode)),
		serve.WithProtocolVersion(*protocolVersion),
		serve.WithObserver(obs),
	}
	srv, err := serve.New(&demoAgent{policy: policy}, opts...)
	if err != nil {
		logger.Fatalf("configure agent: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *metricsListen != "" {
		reg := prom.NewRegistry()
		obs.Set(prom.NewSessionObserver(reg))
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler(reg))
		ms := &http.Server{Addr: *metricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("metrics server: %v", err)
			}
		}()
		defer ms.Close()
		logger.Printf("metrics on %s", *metricsListen)
	}

	if *wsListen != "" {
		ws := &http.Server{Addr: *wsListen, Handler: srv.WSHandler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := ws.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("websocket server: %v", err)
			}
		}()
		defer ws.Close()
		logger.Printf("websocket transport on %s", *wsListen)
	}

	l, err := serve.ListenUnix(*socketPath, 0o660)
	if err != nil {
		logger.Fatalf("bind %s: %v", *socketPath, err)
	}
	logger.Printf("agent %q serving on %s (protocol v%d, fail-%s)", policy.Name, *socketPath, *protocolVersion, *failureMode)

	if err := srv.Serve(ctx, l); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("serve: %v", err)
	}
	logger.Printf("shut down")
}
