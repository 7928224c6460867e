package agenterrors

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/zentinelproxy/zentinel-agent-go/framing"
)

// ClassifyReadCode maps a frame-read error to a stable Code.
func ClassifyReadCode(err error) Code {
	switch {
	case errors.Is(err, framing.ErrFrameTooLarge):
		return CodeFrameTooLarge
	case errors.Is(err, framing.ErrInvalidLength):
		return CodeInvalidLength
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return CodeStreamClosed
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	default:
		return CodeStreamClosed
	}
}

// ClassifyWriteCode maps a frame-write error to a stable Code.
func ClassifyWriteCode(err error) Code {
	switch {
	case errors.Is(err, net.ErrClosed):
		return CodeStreamClosed
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	default:
		return CodeWriteFailed
	}
}

// IsClean reports whether err represents an orderly peer disconnect: EOF at a
// frame boundary. A stream cut mid-frame is not clean.
func IsClean(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
