package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway failure into the stable error taxonomy shared
// by every call site. Retry policy lives with the callers; the gateway
// only classifies.
type Kind int

const (
	// KindUnknown covers transport-level failures with no HTTP status.
	KindUnknown Kind = iota
	// KindNoCredential means no API key is configured for the provider.
	// Raised before any network call is made.
	KindNoCredential
	// KindRateLimited maps HTTP 429.
	KindRateLimited
	// KindPaymentRequired maps HTTP 402. Never worth retrying.
	KindPaymentRequired
	// KindBadCredential maps HTTP 401 and 403.
	KindBadCredential
	// KindGateway covers every other non-2xx status.
	KindGateway
	// KindEmpty means a 2xx response carried no usable completion text.
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindNoCredential:
		return "no_credential"
	case KindRateLimited:
		return "rate_limited"
	case KindPaymentRequired:
		return "payment_required"
	case KindBadCredential:
		return "bad_credential"
	case KindGateway:
		return "gateway_error"
	case KindEmpty:
		return "empty_response"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every gateway call.
type Error struct {
	Kind     Kind
	Provider Provider
	Status   int
	Message  string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("gateway: %s: %s (status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("gateway: %s: %s: %s", e.Provider, e.Kind, e.Message)
}

// KindOf extracts the taxonomy kind from an error chain. Returns
// KindUnknown when no gateway Error is present.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// IsKind reports whether the error chain contains a gateway Error of the
// given kind.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// IsSystemic reports whether the error indicates that further calls will
// uniformly fail (rate-limit exhaustion or billing), so batch loops should
// stop instead of moving to the next unit of work.
func IsSystemic(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindPaymentRequired:
		return true
	}
	return false
}

// classifyStatus maps a non-2xx HTTP status into the taxonomy. Kept as a
// single pure function so retry policy and user-facing messaging stay
// consistent across providers.
func classifyStatus(status int) Kind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusPaymentRequired:
		return KindPaymentRequired
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindBadCredential
	default:
		return KindGateway
	}
}
