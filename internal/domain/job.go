package domain

// Phase enumerates the session lifecycle states.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseInFlight    Phase = "in_flight"
	PhaseSucceeded   Phase = "succeeded"
	PhaseFailed      Phase = "failed"
	PhaseRateLimited Phase = "rate_limited"
)

// FailureKind qualifies PhaseFailed.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureAuthExpired FailureKind = "auth_expired"
	FailureGeneric     FailureKind = "generic"
)

// ErrorKind is the outcome of classifying a remote failure.
type ErrorKind string

const (
	ErrorKindAuthExpired ErrorKind = "auth_expired"
	ErrorKindRateLimited ErrorKind = "rate_limited"
	ErrorKindGeneric     ErrorKind = "generic"
)

// SessionState is the current status of one generation mode.
type SessionState[P Params] struct {
	Phase             Phase       `json:"phase"`
	Failure           FailureKind `json:"failure,omitempty"`
	Draft             P           `json:"draft"`
	LatestArtifactRef string      `json:"latest_artifact_ref,omitempty"`
	Error             string      `json:"error,omitempty"`
}
