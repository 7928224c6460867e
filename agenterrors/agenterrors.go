// Package agenterrors defines the structured error taxonomy for the agent
// protocol engine: which stage of a session failed and a stable code a
// supervisor can match on.
package agenterrors

import "fmt"

// Stage identifies which step of the session lifecycle failed.
type Stage string

const (
	StageBind      Stage = "bind"
	StageAccept    Stage = "accept"
	StageHandshake Stage = "handshake"
	StageRead      Stage = "read"
	StageDecode    Stage = "decode"
	StageDispatch  Stage = "dispatch"
	StageConfig    Stage = "config"
	StageWrite     Stage = "write"
	StageClose     Stage = "close"
)

// Code is a stable, programmatic error identifier.
type Code string

const (
	CodeFrameTooLarge      Code = "frame_too_large"
	CodeInvalidLength      Code = "invalid_length"
	CodeStreamClosed       Code = "stream_closed"
	CodeDecodeFailed       Code = "decode_failed"
	CodeBadHello           Code = "bad_hello"
	CodeUnsupportedVersion Code = "unsupported_version"
	CodeCallbackPanic      Code = "callback_panic"
	CodeConfigInvalid      Code = "config_invalid"
	CodeEncodeFailed       Code = "encode_failed"
	CodeWriteFailed        Code = "write_failed"
	CodeBindFailed         Code = "bind_failed"
	CodeTimeout            Code = "timeout"
	CodeCanceled           Code = "canceled"
)

// Error is a structured, programmatically identifiable session error.
type Error struct {
	Stage Stage
	Code  Code
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Stage, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Stage, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches stage and code to err.
func Wrap(stage Stage, code Code, err error) error {
	return &Error{Stage: stage, Code: code, Err: err}
}
