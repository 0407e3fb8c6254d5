package graph

import "errors"

// UpstreamError wraps any failure talking to the Graph API.
// StatusCode is zero for transport failures.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// AsUpstreamError unwraps err into an *UpstreamError.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr, true
	}
	return nil, false
}
