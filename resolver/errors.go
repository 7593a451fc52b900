package resolver

import "errors"

var (
	ErrUnsupportedSchema  = errors.New("Unsupported URL schema")
	ErrFileNotFound       = errors.New("File not found")
	ErrContentNotReceived = errors.New("Content not received")
	ErrUnknownTransport   = errors.New("Unknown transport error")
)

// ImportError is returned for every failed resolution.
type ImportError struct {
	Specifier string
	Err       error
}

func (e *ImportError) Error() string {
	return `Unable to import "` + e.Specifier + `": ` + e.Err.Error()
}

func (e *ImportError) Unwrap() error { return e.Err }
