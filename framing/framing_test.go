package framing

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 2, 3, 4, 5, 255, 256, 4096} {
		payload := bytes.Repeat([]byte{0xAB}, size)
		frame := Encode(payload)
		got, consumed, err := Decode(frame, DefaultMaxFrameBytes)
		if err != nil {
			t.Fatalf("size=%d: %v", size, err)
		}
		if consumed != len(frame) {
			t.Fatalf("size=%d: consumed %d, want %d", size, consumed, len(frame))
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("size=%d: payload mismatch", size)
		}
	}
}

func TestDecodeShortFrame(t *testing.T) {
	frame := Encode([]byte("hello"))
	for cut := 0; cut < len(frame); cut++ {
		if _, _, err := Decode(frame[:cut], 0); !errors.Is(err, ErrShortFrame) {
			t.Fatalf("cut=%d: expected ErrShortFrame, got %v", cut, err)
		}
	}
}

func TestDecodeTooLarge(t *testing.T) {
	frame := Encode(bytes.Repeat([]byte{'x'}, 64))
	if _, _, err := Decode(frame, 16); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	// The guard fires on the declared length alone, before the payload arrives.
	if _, _, err := Decode(frame[:HeaderLen], 16); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge on bare header, got %v", err)
	}
}

func TestDecoderArbitraryChunks(t *testing.T) {
	payloads := [][]byte{
		[]byte(`{"type":"request_headers"}`),
		{},
		[]byte(`{"action":"allow"}`),
		bytes.Repeat([]byte{'z'}, 1000),
	}
	var stream []byte
	for _, p := range payloads {
		stream = Append(stream, p)
	}
	for chunk := 1; chunk <= 7; chunk++ {
		d := NewDecoder(0)
		var got [][]byte
		for off := 0; off < len(stream); off += chunk {
			end := off + chunk
			if end > len(stream) {
				end = len(stream)
			}
			if _, err := d.Write(stream[off:end]); err != nil {
				t.Fatal(err)
			}
			for {
				p, err := d.Next()
				if errors.Is(err, ErrShortFrame) {
					break
				}
				if err != nil {
					t.Fatalf("chunk=%d: %v", chunk, err)
				}
				got = append(got, p)
			}
		}
		if len(got) != len(payloads) {
			t.Fatalf("chunk=%d: recovered %d frames, want %d", chunk, len(got), len(payloads))
		}
		for i := range payloads {
			if !bytes.Equal(got[i], payloads[i]) {
				t.Fatalf("chunk=%d: frame %d mismatch", chunk, i)
			}
		}
		if d.Buffered() != 0 {
			t.Fatalf("chunk=%d: %d bytes left in decoder", chunk, d.Buffered())
		}
	}
}

func TestDecoderTooLarge(t *testing.T) {
	d := NewDecoder(8)
	if _, err := d.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

// headerOnlyReader serves the 4-byte prefix and fails any further read, so a
// test can prove the oversize guard fires before payload bytes are consumed.
type headerOnlyReader struct {
	hdr  []byte
	read bool
}

func (r *headerOnlyReader) Read(p []byte) (int, error) {
	if r.read {
		return 0, errors.New("read past header")
	}
	r.read = true
	return copy(p, r.hdr), nil
}

func TestReadFrameRejectsOversizeBeforeReadingBody(t *testing.T) {
	r := &headerOnlyReader{hdr: []byte{0x7F, 0xFF, 0xFF, 0xFF}}
	if _, err := ReadFrame(r, 1<<20); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameEOF(t *testing.T) {
	if _, err := ReadFrame(bytes.NewReader(nil), 0); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	// Stream closed mid-frame.
	frame := Encode([]byte("abcdef"))
	if _, err := ReadFrame(bytes.NewReader(frame[:6]), 0); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestWriteReadFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONFrame(&buf, map[string]bool{"ok": true}); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFrame(&buf, DefaultMaxFrameBytes)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"ok":true}` {
		t.Fatalf("unexpected payload: %s", got)
	}
}
