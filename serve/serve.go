// Package serve runs an agent: it binds the local transport, accepts
// connections, and drives one independent session per connection. The accept
// loop never blocks on event processing; a slow callback stalls only its own
// session.
package serve

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zentinelproxy/zentinel-agent-go/agent"
	"github.com/zentinelproxy/zentinel-agent-go/agenterrors"
	"github.com/zentinelproxy/zentinel-agent-go/dispatch"
	"github.com/zentinelproxy/zentinel-agent-go/internal/defaults"
	"github.com/zentinelproxy/zentinel-agent-go/protocol"
	"github.com/zentinelproxy/zentinel-agent-go/session"
)

// Server hosts one agent across any number of transport connections.
// Construct it once at startup and pass it the listeners to serve; there is
// no ambient global state.
type Server struct {
	agent agent.Agent
	hello protocol.CapabilityHello
	opts  options

	sessions sync.WaitGroup
	count    atomic.Int64

	shutdownOnce sync.Once
}

// New validates the agent and builds a server.
func New(a agent.Agent, opts ...Option) (*Server, error) {
	if a == nil {
		return nil, errors.New("missing agent")
	}
	if a.Name() == "" {
		return nil, errors.New("agent has no name")
	}
	caps := a.Capabilities()
	if caps == nil {
		return nil, errors.New("agent declares no capabilities")
	}
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Server{agent: a, hello: caps.Hello(a.Name()), opts: cfg}, nil
}

// ListenUnix binds the agent's stream socket, replacing a stale socket file
// left by a previous run. Bind failures are fatal to the caller: the process
// must exit non-zero rather than run degraded.
func ListenUnix(path string, mode fs.FileMode) (net.Listener, error) {
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&fs.ModeSocket != 0 {
		_ = os.Remove(path)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, agenterrors.Wrap(agenterrors.StageBind, agenterrors.CodeBindFailed, err)
	}
	if mode != 0 {
		if err := os.Chmod(path, mode); err != nil {
			_ = l.Close()
			return nil, agenterrors.Wrap(agenterrors.StageBind, agenterrors.CodeBindFailed, err)
		}
	}
	return l, nil
}

// Serve accepts connections until ctx is cancelled or the listener fails.
// Each accepted connection runs in its own goroutine.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-done:
		}
	}()

	for {
		nc, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.drain(ctx)
				return ctx.Err()
			}
			return agenterrors.Wrap(agenterrors.StageAccept, agenterrors.CodeStreamClosed, err)
		}
		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			s.runConn(ctx, session.NewStreamConn(nc))
		}()
	}
}

// ListenAndServe binds path as a unix socket and serves it.
func (s *Server) ListenAndServe(ctx context.Context, path string) error {
	l, err := ListenUnix(path, s.opts.socketMode)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Sessions reports the current open session count.
func (s *Server) Sessions() int64 { return s.count.Load() }

// runConn owns one connection end to end. Errors are surfaced through the
// observer; a failed session never affects its siblings.
func (s *Server) runConn(ctx context.Context, fc session.FrameConn) {
	obs := s.opts.observer
	obs.SessionCount(s.count.Add(1))
	defer func() { obs.SessionCount(s.count.Add(-1)) }()

	d := dispatch.New(s.agent, s.opts.failureMode, obs)
	sess := session.New(uuid.NewString(), fc, d, session.Config{
		ProtocolVersion: s.opts.protocolVersion,
		Hello:           s.hello,
		MaxFrameBytes:   s.opts.maxFrameBytes,
		Observer:        obs,
	})
	_ = sess.Run(ctx)
}

// drain waits for in-flight sessions and runs the agent's shutdown hook once.
func (s *Server) drain(ctx context.Context) {
	s.sessions.Wait()
	s.shutdownOnce.Do(func() {
		hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaults.ShutdownTimeout)
		defer cancel()
		func() {
			defer func() { _ = recover() }()
			s.agent.OnShutdown(hookCtx)
		}()
	})
}

// Run is the convenience entrypoint: bind the unix socket and serve until
// ctx is cancelled.
func Run(ctx context.Context, a agent.Agent, socketPath string, opts ...Option) error {
	if socketPath == "" {
		return fmt.Errorf("missing socket path")
	}
	srv, err := New(a, opts...)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, socketPath)
}
