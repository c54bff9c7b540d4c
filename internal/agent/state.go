// internal/agent/state.go
package agent

import (
	"fmt"
	"sync"
)

// AuthState tracks the credential sub-flow. It deliberately has no field for
// a credential value: a credential exists only as a parameter of a single
// submit call and dies with that call's stack frame.
type AuthState struct {
	InProgress bool
	Stage      AuthStage
}

// Advance moves the stage forward. Stages never move backwards; a request to
// regress is ignored.
func (a *AuthState) Advance(next AuthStage) {
	if stageRank(next) > stageRank(a.Stage) {
		a.Stage = next
	}
	a.InProgress = a.Stage != StageNone && a.Stage != StageComplete
}

func stageRank(s AuthStage) int {
	switch s {
	case StageNone:
		return 0
	case StageAwaitingEmail:
		return 1
	case StageAwaitingPassword:
		return 2
	case StageAwaitingOTP:
		return 3
	case StageComplete:
		return 4
	default:
		return -1
	}
}

// ErrorInfo is the recorded form of the last node failure.
type ErrorInfo struct {
	Kind        ErrorKind
	Message     string
	Recoverable bool
}

// SessionState is the mutable record of one in-flight task. It is created at
// task start, owned exclusively by the orchestrator, mutated only by the node
// handlers it invokes synchronously, and discarded at terminal status.
type SessionState struct {
	TaskID   string
	RawInput string

	Intent       Intent
	intentParsed bool

	Screen *ScreenObservation
	Auth   AuthState

	needsConfirmation bool
	// PendingTap is the element awaiting user confirmation.
	PendingTap *Element
	// PendingQuery is a query to type once the launched app is up.
	PendingQuery string

	RetryCount     int
	IterationCount int
	// tapNudge is a one-shot pixel offset applied to the next tap, set by the
	// OFFSET_TAP recovery.
	tapNudge int
	// lastTap remembers the most recent tap coordinates for offset retries.
	lastTap *Element

	LastError *ErrorInfo
	Result    string
	Status    TaskStatus
}

// newSessionState creates the per-task state record.
func newSessionState(taskID, rawInput string) *SessionState {
	return &SessionState{
		TaskID:   taskID,
		RawInput: rawInput,
		Status:   StatusRunning,
		Auth:     AuthState{Stage: StageNone},
	}
}

// SetIntent records the parsed intent exactly once per task. Later calls are
// no-ops, which keeps OBSERVE/ANALYZE idempotent.
func (s *SessionState) SetIntent(in Intent) {
	if s.intentParsed {
		return
	}
	s.Intent = in
	s.intentParsed = true
}

// IntentParsed reports whether the intent has been extracted this task.
func (s *SessionState) IntentParsed() bool { return s.intentParsed }

// FlagConfirmation marks an important button that must not be tapped without
// the user's say-so.
func (s *SessionState) FlagConfirmation(pending *Element) {
	s.needsConfirmation = true
	s.PendingTap = pending
}

// TakeConfirmation reads and clears the confirmation flag in one step so a
// stale true can never leak into a later decision.
func (s *SessionState) TakeConfirmation() bool {
	v := s.needsConfirmation
	s.needsConfirmation = false
	return v
}

// RecordError notes the failure that just occurred on the current node.
func (s *SessionState) RecordError(kind ErrorKind, msg string, recoverable bool) {
	s.LastError = &ErrorInfo{Kind: kind, Message: msg, Recoverable: recoverable}
}

// Fail moves the task to its terminal failed status.
func (s *SessionState) Fail(kind ErrorKind, msg string) {
	s.RecordError(kind, msg, false)
	s.Status = StatusFailed
}

// NodeSucceeded resets the per-node retry budget after a clean transition.
func (s *SessionState) NodeSucceeded() {
	s.RetryCount = 0
}

// SetTapNudge arms a one-shot pixel offset for the next tap.
func (s *SessionState) SetTapNudge(px int) { s.tapNudge = px }

// TakeTapNudge consumes the armed offset, if any.
func (s *SessionState) TakeTapNudge() int {
	v := s.tapNudge
	s.tapNudge = 0
	return v
}

// Snapshot renders every field of the session state as text. Tests scan it
// for sentinel credential strings; nothing here should ever match one.
func (s *SessionState) Snapshot() string {
	return fmt.Sprintf("%+v", *s)
}

// taskLease enforces the one-task-at-a-time contract. It is an explicit
// exclusive lease, acquired at task start and released at terminal status,
// rather than an implicit singleton.
type taskLease struct {
	mu     sync.Mutex
	holder string
}

// Acquire takes the lease for taskID, or reports ErrAgentBusy.
func (l *taskLease) Acquire(taskID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" {
		return ErrAgentBusy
	}
	l.holder = taskID
	return nil
}

// Release frees the lease if taskID still holds it.
func (l *taskLease) Release(taskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == taskID {
		l.holder = ""
	}
}

// Holder reports the task currently holding the lease, if any.
func (l *taskLease) Holder() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder, l.holder != ""
}
