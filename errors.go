package mediaparser

import "errors"

// Construction errors, returned only from the New*Parser constructors.
var (
	ErrMissingElement = errors.New("native element not available")
	ErrLinkFailed     = errors.New("failed to link native pads")
	ErrStateChange    = errors.New("native state change failed")
	ErrEngine         = errors.New("native engine error")
)

// Per-call errors.
var (
	ErrInvalidStream     = errors.New("invalid stream index")
	ErrNotReady          = errors.New("parser not ready")
	ErrClosed            = errors.New("parser closed")
	ErrFlushing          = errors.New("stream is flushing")
	ErrEndOfStream       = errors.New("end of stream")
	ErrEngineUnavailable = errors.New("native engine not available")
	ErrUnsupportedFormat = errors.New("format has no native representation")
)
