package serve

import (
	"context"
	"net"

	"github.com/hashicorp/yamux"
	"github.com/zentinelproxy/zentinel-agent-go/agenterrors"
	"github.com/zentinelproxy/zentinel-agent-go/session"
)

// ServeReverse serves the agent over an agent-initiated connection: the proxy
// is the yamux client and opens one stream per logical session, so a single
// outbound connection carries many sessions. Useful when the agent sits
// behind NAT or cannot expose a socket to the proxy.
func (s *Server) ServeReverse(ctx context.Context, conn net.Conn) error {
	mux, err := yamux.Server(conn, nil)
	if err != nil {
		return agenterrors.Wrap(agenterrors.StageAccept, agenterrors.CodeStreamClosed, err)
	}
	defer mux.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = mux.Close()
		case <-done:
		}
	}()

	for {
		stream, err := mux.AcceptStream()
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
			s.runConn(ctx, session.NewStreamConn(stream))
		}()
	}
}

// DialAndServeReverse dials the proxy and serves sessions over the resulting
// connection until ctx is cancelled or the connection drops. Reconnection is
// the caller's responsibility, mirroring the protocol's no-retry rule.
func (s *Server) DialAndServeReverse(ctx context.Context, network, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return agenterrors.Wrap(agenterrors.StageBind, agenterrors.CodeBindFailed, err)
	}
	defer conn.Close()
	return s.ServeReverse(ctx, conn)
}
