package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/zentinelproxy/zentinel-agent-go/agent"
	"github.com/zentinelproxy/zentinel-agent-go/agenterrors"
	"github.com/zentinelproxy/zentinel-agent-go/dispatch"
	"github.com/zentinelproxy/zentinel-agent-go/framing"
	"github.com/zentinelproxy/zentinel-agent-go/protocol"
)

type blockAdminAgent struct {
	agent.BaseAgent
}

func (blockAdminAgent) Name() string { return "block-admin" }

func (blockAdminAgent) Capabilities() *agent.Capabilities {
	return agent.NewCapabilities().HandleRequestHeaders().WithHealthCheck()
}

func (blockAdminAgent) OnRequestHeaders(_ context.Context, req *protocol.Request, _ any) *protocol.Decision {
	if strings.HasPrefix(req.Path, "/admin") {
		return agent.Block(403, "Access denied")
	}
	return agent.Allow()
}

func startSession(t *testing.T, version int) (net.Conn, *Session, chan error) {
	t.Helper()
	proxySide, agentSide := net.Pipe()
	a := blockAdminAgent{}
	d := dispatch.New(a, agent.FailOpen, nil)
	sess := New("test-session", NewStreamConn(agentSide), d, Config{
		ProtocolVersion: version,
		Hello:           a.Capabilities().Hello(a.Name()),
	})
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(context.Background()) }()
	return proxySide, sess, errCh
}

func waitErr(t *testing.T, ch chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

func TestV2HandshakeThenEvents(t *testing.T) {
	proxy, sess, errCh := startSession(t, 2)

	if err := framing.WriteJSONFrame(proxy, protocol.ProxyHello{V: 2, Name: "zentinel"}); err != nil {
		t.Fatal(err)
	}
	helloPayload, err := framing.ReadFrame(proxy, framing.DefaultMaxFrameBytes)
	if err != nil {
		t.Fatal(err)
	}
	caps, err := protocol.DecodeCapabilityHello(helloPayload)
	if err != nil {
		t.Fatal(err)
	}
	if caps.Name != "block-admin" || !caps.SupportsHealthCheck {
		t.Fatalf("capabilities = %+v", caps)
	}

	if err := framing.WriteFrame(proxy, []byte(`{"type":"request_headers","request":{"method":"GET","path":"/admin/users","headers":{}}}`)); err != nil {
		t.Fatal(err)
	}
	resp, err := framing.ReadFrame(proxy, framing.DefaultMaxFrameBytes)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != `{"action":"block","status":403,"body":"Access denied"}` {
		t.Fatalf("unexpected decision: %s", resp)
	}

	proxy.Close()
	if err := waitErr(t, errCh); err != nil {
		t.Fatalf("orderly close should not error: %v", err)
	}
	if sess.State() != StateClosed {
		t.Fatalf("state = %v", sess.State())
	}
}

func TestV1SkipsHandshake(t *testing.T) {
	proxy, _, errCh := startSession(t, 1)

	if err := framing.WriteFrame(proxy, []byte(`{"type":"request_headers","request":{"method":"GET","path":"/ok","headers":{}}}`)); err != nil {
		t.Fatal(err)
	}
	resp, err := framing.ReadFrame(proxy, framing.DefaultMaxFrameBytes)
	if err != nil {
		t.Fatal(err)
	}
	var d protocol.Decision
	if err := json.Unmarshal(resp, &d); err != nil {
		t.Fatal(err)
	}
	if d.Action != protocol.ActionAllow {
		t.Fatalf("decision = %+v", d)
	}
	proxy.Close()
	if err := waitErr(t, errCh); err != nil {
		t.Fatal(err)
	}
}

func TestMalformedHandshakeCloses(t *testing.T) {
	proxy, sess, errCh := startSession(t, 2)
	if err := framing.WriteFrame(proxy, []byte(`{"not":"a hello"}`)); err != nil {
		t.Fatal(err)
	}
	err := waitErr(t, errCh)
	var ae *agenterrors.Error
	if !errors.As(err, &ae) || ae.Stage != agenterrors.StageHandshake || ae.Code != agenterrors.CodeBadHello {
		t.Fatalf("err = %v", err)
	}
	if sess.State() != StateClosed {
		t.Fatalf("state = %v", sess.State())
	}
	proxy.Close()
}

func TestVersionMismatchCloses(t *testing.T) {
	proxy, _, errCh := startSession(t, 2)
	if err := framing.WriteJSONFrame(proxy, protocol.ProxyHello{V: 3}); err != nil {
		t.Fatal(err)
	}
	err := waitErr(t, errCh)
	var ae *agenterrors.Error
	if !errors.As(err, &ae) || ae.Code != agenterrors.CodeUnsupportedVersion {
		t.Fatalf("err = %v", err)
	}
	proxy.Close()
}

func TestDecodeErrorClosesConnection(t *testing.T) {
	proxy, _, errCh := startSession(t, 1)
	if err := framing.WriteFrame(proxy, []byte(`{"type":`)); err != nil {
		t.Fatal(err)
	}
	err := waitErr(t, errCh)
	var ae *agenterrors.Error
	if !errors.As(err, &ae) || ae.Stage != agenterrors.StageDecode {
		t.Fatalf("err = %v", err)
	}
	proxy.Close()
}

func TestOversizeFrameClosesConnection(t *testing.T) {
	proxySide, agentSide := net.Pipe()
	a := blockAdminAgent{}
	sess := New("s", NewStreamConn(agentSide), dispatch.New(a, agent.FailOpen, nil), Config{
		ProtocolVersion: 1,
		MaxFrameBytes:   64,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(context.Background()) }()

	// Header declares 1 MiB; the session must reject it on the prefix alone.
	go proxySide.Write([]byte{0x00, 0x10, 0x00, 0x00})
	err := waitErr(t, errCh)
	var ae *agenterrors.Error
	if !errors.As(err, &ae) || ae.Code != agenterrors.CodeFrameTooLarge {
		t.Fatalf("err = %v", err)
	}
	proxySide.Close()
}

func TestStrictSequencing(t *testing.T) {
	proxy, _, errCh := startSession(t, 1)

	const n = 50
	done := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			ev := fmt.Sprintf(`{"type":"request_headers","request":{"method":"GET","path":"/p/%d","headers":{}}}`, i)
			if err := framing.WriteFrame(proxy, []byte(ev)); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for i := 0; i < n; i++ {
		resp, err := framing.ReadFrame(proxy, framing.DefaultMaxFrameBytes)
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		var d protocol.Decision
		if err := json.Unmarshal(resp, &d); err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		if d.Action != protocol.ActionAllow {
			t.Fatalf("event %d: %+v", i, d)
		}
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	proxy.Close()
	if err := waitErr(t, errCh); err != nil {
		t.Fatal(err)
	}
}

func TestContextCancelClosesSession(t *testing.T) {
	proxySide, agentSide := net.Pipe()
	a := blockAdminAgent{}
	sess := New("s", NewStreamConn(agentSide), dispatch.New(a, agent.FailOpen, nil), Config{ProtocolVersion: 1})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()

	cancel()
	if err := waitErr(t, errCh); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	proxySide.Close()
}

func TestStateString(t *testing.T) {
	for st, want := range map[State]string{
		StateConnecting:  "connecting",
		StateHandshaking: "handshaking",
		StateReady:       "ready",
		StateClosing:     "closing",
		StateClosed:      "closed",
	} {
		if st.String() != want {
			t.Fatalf("%d.String() = %q", st, st.String())
		}
	}
}
