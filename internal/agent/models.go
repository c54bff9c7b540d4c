// internal/agent/models.go
package agent

import "time"

// ActionType is an enumeration of the intents the parser can produce. This
// provides a structured vocabulary for everything the agent can be asked to do.
type ActionType string

const (
	ActionOpenApp        ActionType = "OPEN_APP"        // Launch an application by name.
	ActionSearch         ActionType = "SEARCH"          // Type a query into an on-screen search field.
	ActionQuery          ActionType = "QUERY"           // Ask a question inside the current app.
	ActionExtract        ActionType = "EXTRACT"         // Read the current screen back to the user.
	ActionConversational ActionType = "CONVERSATIONAL"  // Small talk; never touches the device.
	ActionSystem         ActionType = "SYSTEM"          // Device-level command (close app, go home).
)

// Intent is the structured form of one user utterance.
type Intent struct {
	Action ActionType `json:"action"`
	// Target is the resolved app-name-like token, when one was found.
	Target string `json:"target,omitempty"`
	// Query is the free-text payload left over after the target.
	Query string `json:"query,omitempty"`
}

// ElementKind categorizes an interactive element reported by the vision provider.
type ElementKind string

const (
	ElementButton    ElementKind = "button"
	ElementTextField ElementKind = "text_field"
	ElementLink      ElementKind = "link"
	ElementIcon      ElementKind = "icon"
	ElementOther     ElementKind = "other"
)

// Element is one detected on-screen element with its tap coordinates.
// (0,0) means the provider could not locate it.
type Element struct {
	Description string      `json:"description"`
	X           int         `json:"x"`
	Y           int         `json:"y"`
	Kind        ElementKind `json:"kind"`
}

// ScreenObservation is the structured result of one vision analysis pass.
type ScreenObservation struct {
	Description   string    `json:"description"`
	IsLoginScreen bool      `json:"is_login_screen"`
	HasPopup      bool      `json:"has_popup"`
	PrimaryAction string    `json:"primary_action,omitempty"`
	Elements      []Element `json:"elements,omitempty"`
}

// AuthStage tracks progress through the credential sub-flow. Stages only
// advance forward; at most one credential is pending at any time.
type AuthStage string

const (
	StageNone             AuthStage = "NONE"
	StageAwaitingEmail    AuthStage = "AWAITING_EMAIL"
	StageAwaitingPassword AuthStage = "AWAITING_PASSWORD"
	StageAwaitingOTP      AuthStage = "AWAITING_OTP"
	StageComplete         AuthStage = "COMPLETE"
)

// TaskStatus is the lifecycle state of one task.
type TaskStatus string

const (
	StatusRunning   TaskStatus = "RUNNING"
	StatusSucceeded TaskStatus = "SUCCEEDED"
	StatusFailed    TaskStatus = "FAILED"
)

// Node is one named state of the orchestrator's task state machine. The full
// edge set lives in the orchestrator's step function; keeping the states as a
// plain enum keeps every transition statically enumerable.
type Node string

const (
	NodeObserve      Node = "OBSERVE"
	NodeAnalyze      Node = "ANALYZE"
	NodeAuthenticate Node = "AUTHENTICATE"
	NodeAct          Node = "ACT"
	NodeVerify       Node = "VERIFY"
	NodeConfirm      Node = "CONFIRM_ACTION"
	NodeRespond      Node = "RESPOND"
)

// TaskResult is the terminal summary of one task, safe to log, speak, and
// persist: it can never contain credential text because no upstream structure
// can hold one.
type TaskResult struct {
	TaskID     string        `json:"task_id"`
	Input      string        `json:"input"`
	Action     ActionType    `json:"action"`
	Status     TaskStatus    `json:"status"`
	Response   string        `json:"response"`
	ErrorKind  ErrorKind     `json:"error_kind,omitempty"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration"`
}
