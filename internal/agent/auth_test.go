package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func loginScreen(fields ...Element) ScreenObservation {
	return ScreenObservation{
		Description:   "Sign in to continue",
		IsLoginScreen: true,
		Elements:      fields,
	}
}

func TestClassifyStage(t *testing.T) {
	a := NewAuthenticator(&MockDevice{})

	cases := []struct {
		name string
		obs  ScreenObservation
		want AuthStage
	}{
		{
			name: "email field",
			obs:  loginScreen(Element{Description: "Email or phone", X: 100, Y: 200, Kind: ElementTextField}),
			want: StageAwaitingEmail,
		},
		{
			name: "password field",
			obs:  loginScreen(Element{Description: "Password", X: 100, Y: 200, Kind: ElementTextField}),
			want: StageAwaitingPassword,
		},
		{
			name: "otp outranks password",
			obs: loginScreen(
				Element{Description: "Password", X: 100, Y: 200, Kind: ElementTextField},
				Element{Description: "Verification code", X: 100, Y: 400, Kind: ElementTextField},
			),
			want: StageAwaitingOTP,
		},
		{
			name: "no field defaults to email",
			obs:  loginScreen(),
			want: StageAwaitingEmail,
		},
		{
			name: "description fallback for otp",
			obs: ScreenObservation{
				Description:   "Enter the verification code we sent you",
				IsLoginScreen: true,
			},
			want: StageAwaitingOTP,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, a.ClassifyStage(tc.obs))
		})
	}
}

func TestSubmit_TypesCredentialIntoMatchingField(t *testing.T) {
	device := &MockDevice{}
	a := NewAuthenticator(device)
	obs := loginScreen(Element{Description: "Email address", X: 150, Y: 320, Kind: ElementTextField})

	device.On("Tap", mock.Anything, 150, 320).Return(nil)
	device.On("TypeText", mock.Anything, "user@example.com").Return(nil)
	device.On("PressKey", mock.Anything, "KEYCODE_ENTER").Return(nil)

	err := a.Submit(context.Background(), obs, StageAwaitingEmail, "user@example.com")
	require.NoError(t, err)
	device.AssertExpectations(t)
}

func TestSubmit_NormalizesSpokenOTP(t *testing.T) {
	device := &MockDevice{}
	a := NewAuthenticator(device)
	obs := loginScreen(Element{Description: "Enter code", X: 150, Y: 320, Kind: ElementTextField})

	device.On("Tap", mock.Anything, 150, 320).Return(nil)
	device.On("TypeText", mock.Anything, "483912").Return(nil)
	device.On("PressKey", mock.Anything, "KEYCODE_ENTER").Return(nil)

	err := a.Submit(context.Background(), obs, StageAwaitingOTP, "4 8 3-9 1 2")
	require.NoError(t, err)
	device.AssertExpectations(t)
}

func TestSubmit_MissingFieldIsRecoverable(t *testing.T) {
	device := &MockDevice{}
	a := NewAuthenticator(device)
	obs := loginScreen(Element{Description: "Continue", X: 150, Y: 320, Kind: ElementButton})

	err := a.Submit(context.Background(), obs, StageAwaitingPassword, "sekrit")
	require.Error(t, err)

	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ErrKindAuthFieldNotFound, ae.Kind)
	assert.True(t, ae.Recoverable)
	device.AssertNotCalled(t, "TypeText", mock.Anything, mock.Anything)
}

func TestSubmit_CredentialNeverInSessionSnapshot(t *testing.T) {
	const sentinel = "sn-cred-00418-xyzzy"
	device := &MockDevice{}
	a := NewAuthenticator(device)
	obs := loginScreen(Element{Description: "Password", X: 150, Y: 320, Kind: ElementTextField})

	device.On("Tap", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	device.On("TypeText", mock.Anything, sentinel).Return(nil)
	device.On("PressKey", mock.Anything, mock.Anything).Return(nil)

	st := newSessionState("t1", "open bank")
	st.Screen = &obs
	st.Auth.Advance(StageAwaitingPassword)

	err := a.Submit(context.Background(), *st.Screen, st.Auth.Stage, sentinel)
	require.NoError(t, err)

	assert.NotContains(t, st.Snapshot(), sentinel,
		"session state must have no field capable of retaining a credential")
}

func TestSubmit_ErrorMessageNeverLeaksCredential(t *testing.T) {
	const sentinel = "sn-cred-99-leakcheck"
	device := &MockDevice{}
	a := NewAuthenticator(device)
	obs := loginScreen()

	err := a.Submit(context.Background(), obs, StageAwaitingEmail, sentinel)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), sentinel)
}

func TestAuthState_AdvanceForwardOnly(t *testing.T) {
	var st AuthState
	st.Advance(StageAwaitingPassword)
	assert.Equal(t, StageAwaitingPassword, st.Stage)
	assert.True(t, st.InProgress)

	st.Advance(StageAwaitingEmail)
	assert.Equal(t, StageAwaitingPassword, st.Stage, "stage must never regress")

	st.Advance(StageComplete)
	assert.Equal(t, StageComplete, st.Stage)
	assert.False(t, st.InProgress)
}
