package entity

import "time"

// ReasonCode is a stable identifier for the outcome of a reachability check.
type ReasonCode string

const (
	ReasonOK        ReasonCode = "ok"
	ReasonHTTPError ReasonCode = "http_error"
	ReasonTimeout   ReasonCode = "timeout"
	ReasonDNS       ReasonCode = "dns_unresolved"
	ReasonTLS       ReasonCode = "tls_failure"
	ReasonRefused   ReasonCode = "connection_refused"
	ReasonReset     ReasonCode = "connection_reset"
	ReasonClosed    ReasonCode = "connection_closed"
	ReasonGeneric   ReasonCode = "generic"
)

// Sentinel statuses for failures that never produced an HTTP response.
const (
	StatusGeneric = -1
	StatusTLS     = -3
	StatusTimeout = -4
	StatusRefused = -5
	StatusDNS     = -6
	StatusReset   = -7
	StatusClosed  = -8
)

// SentinelStatus maps a network failure reason to its negative status code.
func SentinelStatus(reason ReasonCode) int {
	switch reason {
	case ReasonTLS:
		return StatusTLS
	case ReasonTimeout:
		return StatusTimeout
	case ReasonRefused:
		return StatusRefused
	case ReasonDNS:
		return StatusDNS
	case ReasonReset:
		return StatusReset
	case ReasonClosed:
		return StatusClosed
	default:
		return StatusGeneric
	}
}

// IsSuccessStatus reports whether code is in the inclusive 200-399 range.
func IsSuccessStatus(code int) bool {
	return code >= 200 && code < 400
}

// ValidationResult is the outcome of resolving one URL's reachability.
type ValidationResult struct {
	URL         string        `json:"url"`
	Status      int           `json:"status"`
	Reason      ReasonCode    `json:"reason"`
	Message     string        `json:"message"`
	Recovered   bool          `json:"recovered"`
	Interrupted bool          `json:"interrupted,omitempty"`
	Method      string        `json:"method"`
	Attempts    int           `json:"attempts"`
	CheckedAt   time.Time     `json:"checked_at"`
	Duration    time.Duration `json:"duration"`
}

// OK reports whether the final status is a success.
func (r ValidationResult) OK() bool {
	return IsSuccessStatus(r.Status)
}

// Transient reports whether the failure is worth retrying.
func (r ValidationResult) Transient() bool {
	switch r.Reason {
	case ReasonTimeout, ReasonRefused, ReasonReset, ReasonClosed:
		return true
	}
	return false
}
