// internal/agent/auth.go
package agent

import (
	"context"
	"strings"
)

// stageFieldKeywords identify the input field for each credential stage by
// its description. OTP is checked before password and password before email
// when classifying a screen, since an OTP screen often also says "enter the
// code we sent to your email".
var stageFieldKeywords = map[AuthStage][]string{
	StageAwaitingEmail:    {"email", "username", "user name", "phone", "account"},
	StageAwaitingPassword: {"password", "passcode"},
	StageAwaitingOTP:      {"otp", "one-time", "one time", "verification code", "code", "2fa"},
}

// stagePrompts are spoken verbatim to request each credential.
var stagePrompts = map[AuthStage]string{
	StageAwaitingEmail:    "This screen is asking you to sign in. Please say your email or username.",
	StageAwaitingPassword: "Please say your password.",
	StageAwaitingOTP:      "Please read out the verification code you received.",
}

// Authenticator drives one credential exchange per AUTHENTICATE visit: it
// classifies the login screen, asks for exactly one credential, and types it
// into the matching field. A credential only ever exists as a parameter of a
// single Submit call; nothing here writes one to a struct field.
type Authenticator struct {
	device DeviceBridge
}

// NewAuthenticator builds an authenticator over the given device.
func NewAuthenticator(device DeviceBridge) *Authenticator {
	return &Authenticator{device: device}
}

// ClassifyStage infers which credential the current login screen wants.
// Checked most-specific first: an OTP field outranks a password field, which
// outranks an email field. A login screen with no recognizable field defaults
// to the email stage, the usual first step of a sign-in flow.
func (a *Authenticator) ClassifyStage(obs ScreenObservation) AuthStage {
	for _, stage := range []AuthStage{StageAwaitingOTP, StageAwaitingPassword, StageAwaitingEmail} {
		if _, ok := findField(obs, stage); ok {
			return stage
		}
	}
	desc := strings.ToLower(obs.Description)
	switch {
	case strings.Contains(desc, "verification") || strings.Contains(desc, "code"):
		return StageAwaitingOTP
	case strings.Contains(desc, "password"):
		return StageAwaitingPassword
	default:
		return StageAwaitingEmail
	}
}

// Prompt returns the spoken request for the given stage.
func (a *Authenticator) Prompt(stage AuthStage) string {
	if p, ok := stagePrompts[stage]; ok {
		return p
	}
	return "Please provide the requested sign-in information."
}

// Submit types one credential into the field matching the stage and confirms
// it. The credential is used for the device calls below and never retained.
// A missing field is reported as a recoverable AUTH_FIELD_NOT_FOUND so the
// policy can re-observe a screen that may have shifted.
func (a *Authenticator) Submit(ctx context.Context, obs ScreenObservation, stage AuthStage, credential string) error {
	field, ok := findField(obs, stage)
	if !ok {
		return NewError(ErrKindAuthFieldNotFound,
			"no input field matching stage "+string(stage)+" on screen", true)
	}

	if stage == StageAwaitingOTP {
		credential = normalizeOTP(credential)
	}

	if err := a.device.Tap(ctx, field.X, field.Y); err != nil {
		return NewError(ErrKindDeviceCommandFailed, "tap credential field: "+err.Error(), true)
	}
	if err := a.device.TypeText(ctx, credential); err != nil {
		return NewError(ErrKindDeviceCommandFailed, "type credential: "+err.Error(), true)
	}
	if err := a.device.PressKey(ctx, "KEYCODE_ENTER"); err != nil {
		return NewError(ErrKindDeviceCommandFailed, "submit credential: "+err.Error(), true)
	}
	return nil
}

// findField locates the on-screen text field for a credential stage.
func findField(obs ScreenObservation, stage AuthStage) (Element, bool) {
	keywords := stageFieldKeywords[stage]
	for _, el := range obs.Elements {
		if el.Kind != ElementTextField {
			continue
		}
		desc := strings.ToLower(el.Description)
		for _, kw := range keywords {
			if strings.Contains(desc, kw) {
				return el, true
			}
		}
	}
	return Element{}, false
}

// normalizeOTP strips the spaces and dashes speech transcription inserts into
// spoken digit sequences ("one two three" arrives as "1 2 3").
func normalizeOTP(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r == ' ' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
