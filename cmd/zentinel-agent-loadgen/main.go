// Command zentinel-agent-loadgen drives an agent socket from the proxy side
// of the protocol: it opens concurrent connections, streams request_headers
// events, and reports latency and decision counts as JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/zentinelproxy/zentinel-agent-go/client"
	"github.com/zentinelproxy/zentinel-agent-go/internal/cmdutil"
	"github.com/zentinelproxy/zentinel-agent-go/protocol"
)

type report struct {
	Connections int                `json:"connections"`
	Events      int                `json:"events"`
	Errors      int                `json:"errors"`
	Actions     map[string]int     `json:"actions"`
	LatencyMS   map[string]float64 `json:"latency_ms"`
	Elapsed     string             `json:"elapsed"`
}

type collector struct {
	mu        sync.Mutex
	latencies []time.Duration
	actions   map[string]int
	errors    int
}

func (c *collector) record(d time.Duration, action string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errors++
		return
	}
	c.latencies = append(c.latencies, d)
	c.actions[action]++
}

func (c *collector) percentile(p float64) time.Duration {
	if len(c.latencies) == 0 {
		return 0
	}
	i := int(p * float64(len(c.latencies)-1))
	return c.latencies[i]
}

func main() {
	fs := flag.NewFlagSet("zentinel-agent-loadgen", flag.ContinueOnError)
	socketPath := fs.String("socket", cmdutil.EnvString("ZENTINEL_AGENT_SOCKET", "/run/zentinel/agent.sock"), "agent unix socket to drive")
	conns := fs.Int("conns", 4, "concurrent connections")
	events := fs.Int("events", 1000, "events per connection")
	path := fs.String("path", "/load/test", "request path to send")
	protocolVersion := fs.Int("protocol-version", 2, "protocol version to speak")
	pretty := fs.Bool("pretty", cmdutil.EnvBool("ZENTINEL_AGENT_PRETTY", false), "indent the JSON report")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if *conns <= 0 || *events <= 0 {
		log.Fatalf("conns and events must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	col := &collector{actions: make(map[string]int)}
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < *conns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(ctx, *socketPath, *protocolVersion, *path, *events, col)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	col.mu.Lock()
	sort.Slice(col.latencies, func(i, j int) bool { return col.latencies[i] < col.latencies[j] })
	col.mu.Unlock()

	out := report{
		Connections: *conns,
		Events:      len(col.latencies),
		Errors:      col.errors,
		Actions:     col.actions,
		LatencyMS: map[string]float64{
			"p50": float64(col.percentile(0.50)) / float64(time.Millisecond),
			"p95": float64(col.percentile(0.95)) / float64(time.Millisecond),
			"p99": float64(col.percentile(0.99)) / float64(time.Millisecond),
		},
		Elapsed: elapsed.String(),
	}
	if err := cmdutil.WriteJSON(os.Stdout, out, *pretty); err != nil {
		log.Fatalf("write report: %v", err)
	}
	if col.errors > 0 {
		os.Exit(1)
	}
}

func runWorker(ctx context.Context, socket string, version int, path string, events int, col *collector) {
	c, err := client.Dial(ctx, "unix", socket,
		client.WithName("loadgen"),
		client.WithProtocolVersion(version),
	)
	if err != nil {
		col.record(0, "", fmt.Errorf("dial: %w", err))
		return
	}
	defer c.Close()

	for i := 0; i < events && ctx.Err() == nil; i++ {
		ev := &protocol.Event{
			Type: protocol.EventRequestHeaders,
			Request: &protocol.Request{
				Method: "GET",
				Path:   path,
				Metadata: &protocol.RequestMetadata{
					CorrelationID: uuid.NewString(),
				},
			},
		}
		start := time.Now()
		dec, err := c.Decide(ev)
		if err != nil {
			col.record(0, "", err)
			return
		}
		col.record(time.Since(start), string(dec.Action), nil)
	}
}
