// internal/agent/recovery.go
package agent

import "time"

// Op is the policy's verdict on a failed node.
type Op string

const (
	// OpRetry re-runs the failed node after a fixed backoff.
	OpRetry Op = "RETRY"
	// OpRecover performs a named corrective action, then re-runs the node.
	OpRecover Op = "RECOVER"
	// OpAbort terminates the task with a failed status.
	OpAbort Op = "ABORT"
)

// RecoveryAction names the corrective step taken before a node is re-run.
type RecoveryAction string

const (
	// RecoverDismissPopup taps a dismiss-like element or presses back to
	// clear an overlay, then re-observes.
	RecoverDismissPopup RecoveryAction = "DISMISS_POPUP"
	// RecoverOffsetTap re-issues the last tap nudged by a few pixels.
	RecoverOffsetTap RecoveryAction = "OFFSET_TAP"
	// RecoverReObserve discards the cached observation and captures fresh.
	RecoverReObserve RecoveryAction = "RE_OBSERVE"
)

// Decision is what the policy tells the orchestrator to do about a failure.
type Decision struct {
	Op       Op
	Recovery RecoveryAction
	Backoff  time.Duration
}

// Policy maps a classified node failure plus the session's retry budget to a
// single decision. It is a pure lookup: all the state it consults is passed
// in, so the same inputs always produce the same decision.
type Policy struct {
	maxRetries int
	backoff    time.Duration
}

// NewPolicy builds the recovery policy. maxRetries bounds RETRY and RECOVER
// attempts per node; backoff is the fixed pause before each RETRY.
func NewPolicy(maxRetries int, backoff time.Duration) *Policy {
	return &Policy{maxRetries: maxRetries, backoff: backoff}
}

// Decide returns the recovery decision for a failure of the given kind after
// retryCount prior attempts on the same node. Terminal kinds and exhausted
// budgets abort; transient kinds retry with backoff; structural kinds get a
// corrective action chosen by kind and attempt number.
func (p *Policy) Decide(kind ErrorKind, recoverable bool, retryCount int) Decision {
	if !recoverable {
		return Decision{Op: OpAbort}
	}
	switch kind {
	case ErrKindIterationLimit, ErrKindCancelled:
		return Decision{Op: OpAbort}
	}
	if retryCount >= p.maxRetries+1 {
		return Decision{Op: OpAbort}
	}

	switch kind {
	case ErrKindDeviceCommandFailed, ErrKindProviderUnavailable:
		return Decision{Op: OpRetry, Backoff: p.backoff}
	case ErrKindPopupBlocking:
		return Decision{Op: OpRecover, Recovery: RecoverDismissPopup}
	case ErrKindElementNotFound:
		// First miss is usually an imprecise coordinate; nudge the tap.
		// After that, assume the screen changed under us and look again.
		if retryCount == 0 {
			return Decision{Op: OpRecover, Recovery: RecoverOffsetTap}
		}
		return Decision{Op: OpRecover, Recovery: RecoverReObserve}
	case ErrKindAuthFieldNotFound:
		return Decision{Op: OpRecover, Recovery: RecoverReObserve}
	default:
		return Decision{Op: OpAbort}
	}
}
