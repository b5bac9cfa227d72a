package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies gateway call failures. Callers decide per operation which
// kinds are fatal and which are tolerated.
type Kind int

const (
	// KindNotConfigured means no active gateway configuration is loaded.
	KindNotConfigured Kind = iota + 1
	// KindTimeout means the call exceeded the hard request timeout.
	KindTimeout
	// KindNetwork means a transport-level failure (DNS, connection refused).
	KindNetwork
	// KindHTTP means the gateway answered with a non-2xx status.
	KindHTTP
	// KindNotFound is a 404 answer, tolerated by delete semantics.
	KindNotFound
	// KindCorrupt means the gateway answered with an unparseable payload.
	KindCorrupt
)

func (k Kind) String() string {
	switch k {
	case KindNotConfigured:
		return "not_configured"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindNotFound:
		return "not_found"
	case KindCorrupt:
		return "corrupt"
	}
	return "unknown"
}

// Error is the failure type returned by every Client operation.
type Error struct {
	Kind   Kind
	Op     string // endpoint path
	Status int    // http status for KindHTTP/KindNotFound
	Body   string // response body for KindHTTP/KindNotFound
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP, KindNotFound:
		return fmt.Sprintf("gateway %s: http %d: %s", e.Op, e.Status, e.Body)
	default:
		if e.Err != nil {
			return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("gateway %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err, or 0 if err is not a gateway error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}

// IsNotFound reports whether err is a gateway 404.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsTimeout reports whether err is a gateway call timeout.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}
