package e2e_test

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zentinelproxy/zentinel-agent-go/agent"
	"github.com/zentinelproxy/zentinel-agent-go/client"
	"github.com/zentinelproxy/zentinel-agent-go/framing"
	"github.com/zentinelproxy/zentinel-agent-go/protocol"
	"github.com/zentinelproxy/zentinel-agent-go/serve"
)

// echoGateAgent blocks /admin paths and tags every other decision with the
// request path so tests can check response-to-request pairing.
type echoGateAgent struct {
	agent.BaseAgent
}

func (*echoGateAgent) Name() string { return "echo-gate" }

func (*echoGateAgent) Capabilities() *agent.Capabilities {
	return agent.NewCapabilities().HandleRequestHeaders()
}

func (*echoGateAgent) OnRequestHeaders(_ context.Context, req *protocol.Request, _ any) *protocol.Decision {
	if strings.HasPrefix(req.Path, "/admin") {
		return agent.Block(403, "Access denied")
	}
	d := agent.Allow()
	d.RuleID = req.Path
	return d
}

func startServer(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "zag-e2e")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "agent.sock")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := serve.New(&echoGateAgent{})
	if err != nil {
		t.Fatal(err)
	}
	l, err := serve.ListenUnix(sock, 0o660)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx, l)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not drain")
		}
	})
	return sock
}

// The proxy side of the protocol is four-byte big-endian length prefixes
// around UTF-8 JSON. This test speaks it raw, with no client library in
// between, and checks the exact decision bytes for a blocked path.
func TestBlockDecisionWireBytes(t *testing.T) {
	sock := startServer(t)

	nc, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	if err := framing.WriteJSONFrame(nc, protocol.ProxyHello{V: 2, Name: "e2e-proxy"}); err != nil {
		t.Fatal(err)
	}
	helloRaw, err := framing.ReadFrame(nc, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	hello, err := protocol.DecodeCapabilityHello(helloRaw)
	if err != nil {
		t.Fatalf("capability hello %q: %v", helloRaw, err)
	}
	if hello.Name != "echo-gate" {
		t.Fatalf("agent name = %q", hello.Name)
	}

	ev := []byte(`{"type":"request_headers","request":{"method":"GET","path":"/admin/users","headers":{}}}`)
	if err := framing.WriteFrame(nc, ev); err != nil {
		t.Fatal(err)
	}
	resp, err := framing.ReadFrame(nc, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"action":"block","status":403,"body":"Access denied"}`
	if string(resp) != want {
		t.Fatalf("decision bytes = %s, want %s", resp, want)
	}
}

// Two connections each stream events and must each see their own responses
// back in send order, with nothing leaking across connections.
func TestConcurrentSessionsStrictOrdering(t *testing.T) {
	sock := startServer(t)
	ctx := context.Background()

	const perConn = 100
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for conn := 0; conn < 2; conn++ {
		wg.Add(1)
		go func(conn int) {
			defer wg.Done()
			c, err := client.Dial(ctx, "unix", sock, client.WithName(fmt.Sprintf("proxy-%d", conn)))
			if err != nil {
				errs <- err
				return
			}
			defer c.Close()
			for i := 0; i < perConn; i++ {
				path := fmt.Sprintf("/conn/%d/req/%d", conn, i)
				dec, err := c.Decide(&protocol.Event{
					Type:    protocol.EventRequestHeaders,
					Request: &protocol.Request{Method: "GET", Path: path},
				})
				if err != nil {
					errs <- fmt.Errorf("conn %d event %d: %w", conn, i, err)
					return
				}
				if dec.Action != protocol.ActionAllow || dec.RuleID != path {
					errs <- fmt.Errorf("conn %d event %d: got action=%q rule=%q, want allow %q", conn, i, dec.Action, dec.RuleID, path)
					return
				}
			}
		}(conn)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
