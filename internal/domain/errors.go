package domain

import "fmt"

// NetworkError is a transport-level failure talking to a remote endpoint.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error requesting %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError is an unexpected status code from a remote endpoint.
type ProtocolError struct {
	Status  int
	Message string
	URL     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("received status code %d, %s from %s", e.Status, e.Message, e.URL)
}

// DecodeError indicates a response body that does not match the expected
// shape.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("error decoding response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// AuthError indicates a failed authentication for one tenant: the login
// call did not succeed, no token was returned, or the required permission
// is missing. It aborts only that tenant's run.
type AuthError struct {
	Tenant string
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for tenant %s: %s", e.Tenant, e.Reason)
}

// DomainError represents a harvesting-rule violation, such as an
// aggregator reference that cannot be resolved.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new domain error.
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Domain error codes.
const (
	CodeAggregatorUnresolved = "AGGREGATOR_UNRESOLVED"
	CodeNoFetcher            = "NO_FETCHER"
	CodeHarvestingInactive   = "HARVESTING_INACTIVE"
)
