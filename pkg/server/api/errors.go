package api

import "errors"

// ErrHijackUnsupported indicates the underlying ResponseWriter cannot be hijacked.
var ErrHijackUnsupported = errors.New("response writer does not support hijacking")
