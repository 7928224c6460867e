// Package framing implements the length-prefixed message framing used on the
// wire between the proxy and agents: a 4-byte big-endian unsigned length
// followed by exactly that many bytes of UTF-8 JSON payload.
package framing

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
)

// HeaderLen is the size of the length prefix in bytes.
const HeaderLen = 4

// DefaultMaxFrameBytes is the recommended maximum payload size for a single frame.
//
// Do not read frames with maxLen<=0 from untrusted peers, because that disables
// the size guard and may lead to large allocations (memory DoS).
const DefaultMaxFrameBytes = 1 << 20

var (
	// ErrFrameTooLarge reports a length prefix exceeding the configured maximum.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrInvalidLength reports a length prefix that cannot describe a valid payload.
	ErrInvalidLength = errors.New("invalid frame length")

	// ErrShortFrame reports that the buffer does not yet hold a complete frame.
	// It is a retry signal, not a protocol error: append more input and decode again.
	ErrShortFrame = errors.New("short frame")
)

// Append appends a complete frame carrying payload to dst and returns the
// extended slice. The prefix always records the exact payload length.
func Append(dst []byte, payload []byte) []byte {
	var hdr [HeaderLen]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

// Encode returns a freshly allocated frame carrying payload.
func Encode(payload []byte) []byte {
	return Append(make([]byte, 0, HeaderLen+len(payload)), payload)
}

// Decode extracts the first complete frame from buf.
//
// It returns the payload (aliasing buf, not a copy) and the number of bytes
// consumed. ErrShortFrame means buf does not yet hold a complete frame and no
// bytes were consumed. A declared length above maxLen fails with
// ErrFrameTooLarge before any payload bytes are touched; maxLen<=0 disables
// the guard.
func Decode(buf []byte, maxLen int) (payload []byte, consumed int, err error) {
	if len(buf) < HeaderLen {
		return nil, 0, ErrShortFrame
	}
	n := int(binary.BigEndian.Uint32(buf))
	if n < 0 {
		return nil, 0, ErrInvalidLength
	}
	if maxLen > 0 && n > maxLen {
		return nil, 0, ErrFrameTooLarge
	}
	if len(buf) < HeaderLen+n {
		return nil, 0, ErrShortFrame
	}
	return buf[HeaderLen : HeaderLen+n], HeaderLen + n, nil
}

// Decoder accumulates arbitrary stream chunks and yields complete frames.
// Frames split across any chunk boundaries are reassembled.
type Decoder struct {
	maxLen int
	buf    []byte
}

// NewDecoder returns a streaming decoder enforcing maxLen per frame.
// maxLen<=0 falls back to DefaultMaxFrameBytes.
func NewDecoder(maxLen int) *Decoder {
	if maxLen <= 0 {
		maxLen = DefaultMaxFrameBytes
	}
	return &Decoder{maxLen: maxLen}
}

// Write appends a chunk of stream input. It never fails; errors surface from Next.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next returns the next complete payload, copying it out of the internal
// buffer. ErrShortFrame means more input is needed. ErrFrameTooLarge and
// ErrInvalidLength are fatal for the stream.
func (d *Decoder) Next() ([]byte, error) {
	payload, consumed, err := Decode(d.buf, d.maxLen)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	d.buf = d.buf[consumed:]
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return out, nil
}

// Buffered reports how many bytes are waiting in the decoder.
func (d *Decoder) Buffered() int { return len(d.buf) }

// WriteFrame writes one frame carrying payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [HeaderLen]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// WriteJSONFrame marshals v and writes it as a single frame.
func WriteJSONFrame(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return WriteFrame(w, b)
}

// ReadFrame reads one complete frame payload from r.
//
// The size guard runs before the payload allocation, so a hostile length
// prefix cannot force a large allocation. Callers MUST pass a positive maxLen
// when reading from untrusted peers; maxLen<=0 disables the guard.
func ReadFrame(r io.Reader, maxLen int) ([]byte, error) {
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(hdr[:]))
	if n < 0 {
		return nil, ErrInvalidLength
	}
	if maxLen > 0 && n > maxLen {
		return nil, ErrFrameTooLarge
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
