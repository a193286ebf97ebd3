package api

import "fmt"

// AuthExpiredError reports that the credential refresh failed and the
// auth session is no longer usable. It is terminal: callers are
// expected to force re-authentication.
type AuthExpiredError struct {
	Err error
}

func (e *AuthExpiredError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication expired: %v", e.Err)
	}
	return "authentication expired"
}

func (e *AuthExpiredError) Unwrap() error { return e.Err }

// NetworkError reports a transport-level failure where no response was
// received. It is never retried by the client.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError reports a non-401 HTTP error status. The response body is
// preserved verbatim.
type ServerError struct {
	Status int
	Body   []byte
}

func (e *ServerError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}
