// File: internal/agent/interfaces.go
package agent

import "context"

// DeviceBridge abstracts the controlled device. Implementations issue real
// commands (ADB or otherwise); the orchestrator only cares about the
// ok-or-error outcome. Coordinates handed to Tap are already validated and
// clamped by the caller.
type DeviceBridge interface {
	Capture(ctx context.Context) ([]byte, error)
	Tap(ctx context.Context, x, y int) error
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, code string) error
	LaunchApp(ctx context.Context, packageID string) error
	Back(ctx context.Context) error
	Home(ctx context.Context) error
	SwipeUp(ctx context.Context) error
}

// VisionProvider turns a screenshot into a structured screen observation.
// Immediate repeated calls on an identical screen must yield a stable element
// set; the recovery policy's offset-tap retries depend on that.
type VisionProvider interface {
	Analyze(ctx context.Context, image []byte) (ScreenObservation, error)
}

// SpeechInput captures one user utterance and returns its transcription.
// Vocabulary correction is applied downstream by the intent parser, not here.
type SpeechInput interface {
	Listen(ctx context.Context) (string, error)
}

// Speaker voices text back to the user. A failing Speaker is never fatal to a
// task; the orchestrator logs and moves on.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// AppRegistry resolves a human app name to a platform package identifier,
// tolerating speech-recognition fuzz in the name.
type AppRegistry interface {
	Resolve(name string) (packageID string, ok bool)
	// Canonical returns the registry's canonical spelling for a fuzzy name,
	// used by the intent parser to normalize targets.
	Canonical(name string) (string, bool)
}

// TranscriptSink receives terminal task summaries. Persistence failures are
// logged, never surfaced to the user.
type TranscriptSink interface {
	SaveTranscript(ctx context.Context, result TaskResult) error
}
