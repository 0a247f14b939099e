package push

import (
	"context"
	"fmt"
)

// Adapter is the capability a vendor backend exposes to the core: one
// push to one token. A nil error means the vendor accepted the push;
// everything else is a *push.Error.
type Adapter interface {
	Send(ctx context.Context, token string) error
}

// ErrorKind classifies adapter send and construction faults.
type ErrorKind int

const (
	// KindCertLoading: the vendor credential is missing or unreadable.
	KindCertLoading ErrorKind = iota
	// KindEndpointTransient: the vendor endpoint failed temporarily.
	KindEndpointTransient
	// KindEndpointPersistent: the vendor endpoint rejected the request
	// for good (bad credentials, bad request shape).
	KindEndpointPersistent
	// KindTokenRateLimited: the vendor rate-limited this token.
	KindTokenRateLimited
	// KindTokenBlocked: the vendor reports the token as dead.
	KindTokenBlocked
	// KindUnknown: an unclassified vendor code, carried in Code.
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindCertLoading:
		return "cert_loading"
	case KindEndpointTransient:
		return "endpoint_transient"
	case KindEndpointPersistent:
		return "endpoint_persistent"
	case KindTokenRateLimited:
		return "token_ratelimited"
	case KindTokenBlocked:
		return "token_blocked"
	case KindUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error is a classified adapter fault. Code is only meaningful for
// KindUnknown, where it carries the vendor response code.
type Error struct {
	Kind ErrorKind
	Code int
}

func (e *Error) Error() string {
	if e.Kind == KindUnknown {
		return fmt.Sprintf("push error: unknown vendor code %d", e.Code)
	}
	return "push error: " + e.Kind.String()
}

// NewError returns a classified adapter fault.
func NewError(kind ErrorKind) *Error {
	return &Error{Kind: kind}
}

// UnknownError returns a KindUnknown fault carrying the vendor code.
func UnknownError(code int) *Error {
	return &Error{Kind: KindUnknown, Code: code}
}
