package authflow

import (
	"time"

	"github.com/glideidentity/phone-auth-core/api"
)

// Phase is the position of an authentication attempt in its lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreparing
	PhaseAwaitingCredential
	PhasePolling
	PhaseProcessing
	PhaseCompleted
	PhaseFailed
	PhaseCancelled
)

var phaseNames = map[Phase]string{
	PhaseIdle:               "idle",
	PhasePreparing:          "preparing",
	PhaseAwaitingCredential: "awaiting_credential",
	PhasePolling:            "polling",
	PhaseProcessing:         "processing",
	PhaseCompleted:          "completed",
	PhaseFailed:             "failed",
	PhaseCancelled:          "cancelled",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the attempt has finished, one way or another.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// Failure describes a terminal failure: the machine code for programmatic
// handling, a human-readable message, and whether a manual retry can succeed.
type Failure struct {
	Code      string
	Message   string
	Retryable bool
}

// State is a snapshot of one authentication attempt. It is a value; mutations
// happen only inside the orchestrator's run loop and are published whole.
type State struct {
	Phase    Phase
	Attempt  int
	Strategy api.Strategy
	Session  api.SessionInfo

	// PromptData carries the provider-issued credential prompt parameters.
	PromptData map[string]any

	// RetryCount counts silent retries consumed within this attempt.
	RetryCount int

	// CrossDeviceDetected flips to true, at most once per attempt, when the
	// flow turns out to run over an out-of-band channel (QR or redirect).
	CrossDeviceDetected bool

	// TimeoutBudget and Deadline bound the attempt by wall clock. The
	// deadline is computed once at the start of the attempt and widened at
	// most once on cross-device detection, never per poll.
	TimeoutBudget time.Duration
	Deadline      time.Time

	Result  *api.ProcessResponse
	Failure *Failure
}
