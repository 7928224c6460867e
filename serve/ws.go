package serve

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/zentinelproxy/zentinel-agent-go/session"
)

// wsFrameConn adapts a websocket connection to the session's framed
// transport: each binary message carries exactly one JSON payload, so no
// length prefix is needed.
type wsFrameConn struct {
	c *websocket.Conn
}

var errNonBinaryFrame = errors.New("non-binary websocket frame")

func (w *wsFrameConn) ReadPayload(maxLen int) ([]byte, error) {
	w.c.SetReadLimit(int64(maxLen))
	mt, b, err := w.c.ReadMessage()
	if err != nil {
		return nil, err
	}
	if mt != websocket.BinaryMessage {
		return nil, errNonBinaryFrame
	}
	return b, nil
}

func (w *wsFrameConn) WritePayload(p []byte) error {
	return w.c.WriteMessage(websocket.BinaryMessage, p)
}

func (w *wsFrameConn) Close() error { return w.c.Close() }

// WSHandler serves the agent protocol to remote proxies over WebSocket.
// Mount it on an HTTP mux; each upgraded connection becomes one session.
func (s *Server) WSHandler() http.Handler {
	up := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// The proxy is a backend peer, not a browser; Origin is meaningless here.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.sessions.Add(1)
		defer s.sessions.Done()
		s.runConn(r.Context(), &wsFrameConn{c: c})
	})
}

var _ session.FrameConn = (*wsFrameConn)(nil)
