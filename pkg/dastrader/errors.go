package dastrader

import "errors"

var (
	// connect phase; recorded in the session's last error and surfaced to
	// the caller, never retried internally.
	ErrConnectTimeout = errors.New("connect timeout")
	ErrConnectFailed  = errors.New("connect failed")
	ErrLoginTimeout   = errors.New("login timeout")

	// command phase.
	ErrNotConnected   = errors.New("not connected")
	ErrCommandTimeout = errors.New("command timeout")
	ErrIO             = errors.New("io error")

	// ErrResponseMismatch means the reply never showed the expected marker
	// substring: probable cross-talk with another command's reply. The
	// accumulated text is still returned so callers that want the raw
	// reply anyway can take it; state-applying callers must discard it.
	ErrResponseMismatch = errors.New("response mismatch")
)
