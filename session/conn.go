package session

import (
	"io"
	"sync"

	"github.com/zentinelproxy/zentinel-agent-go/framing"
)

// FrameConn is one framed transport connection. Implementations carry whole
// payloads; the session never sees partial frames.
type FrameConn interface {
	// ReadPayload blocks for the next payload, enforcing maxLen.
	ReadPayload(maxLen int) ([]byte, error)
	// WritePayload sends one payload as a single frame.
	WritePayload(p []byte) error
	Close() error
}

// streamConn frames an ordinary byte stream (unix socket, TCP, yamux stream).
type streamConn struct {
	rw      io.ReadWriter
	writeMu sync.Mutex
	closer  io.Closer
}

// NewStreamConn wraps a byte stream in length-prefix framing. If rw also
// implements io.Closer, Close is forwarded to it.
func NewStreamConn(rw io.ReadWriter) FrameConn {
	c := &streamConn{rw: rw}
	if cl, ok := rw.(io.Closer); ok {
		c.closer = cl
	}
	return c
}

func (c *streamConn) ReadPayload(maxLen int) ([]byte, error) {
	return framing.ReadFrame(c.rw, maxLen)
}

func (c *streamConn) WritePayload(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return framing.WriteFrame(c.rw, p)
}

func (c *streamConn) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
