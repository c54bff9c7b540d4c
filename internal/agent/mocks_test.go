package agent

import (
	"context"
	"sync/atomic"

	"github.com/stretchr/testify/mock"
)

// -- Device Bridge Mock --

// MockDevice mocks the DeviceBridge interface and counts calls so tests can
// assert the device was never touched.
type MockDevice struct {
	mock.Mock
	calls atomic.Int64
}

func (m *MockDevice) CallCount() int64 { return m.calls.Load() }

func (m *MockDevice) Capture(ctx context.Context) ([]byte, error) {
	m.calls.Add(1)
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDevice) Tap(ctx context.Context, x, y int) error {
	m.calls.Add(1)
	args := m.Called(ctx, x, y)
	return args.Error(0)
}

func (m *MockDevice) TypeText(ctx context.Context, text string) error {
	m.calls.Add(1)
	args := m.Called(ctx, text)
	return args.Error(0)
}

func (m *MockDevice) PressKey(ctx context.Context, code string) error {
	m.calls.Add(1)
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockDevice) LaunchApp(ctx context.Context, packageID string) error {
	m.calls.Add(1)
	args := m.Called(ctx, packageID)
	return args.Error(0)
}

func (m *MockDevice) Back(ctx context.Context) error {
	m.calls.Add(1)
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDevice) Home(ctx context.Context) error {
	m.calls.Add(1)
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDevice) SwipeUp(ctx context.Context) error {
	m.calls.Add(1)
	args := m.Called(ctx)
	return args.Error(0)
}

// -- Vision Provider Mock --

// MockVision mocks the VisionProvider interface.
type MockVision struct {
	mock.Mock
	calls atomic.Int64
}

func (m *MockVision) CallCount() int64 { return m.calls.Load() }

func (m *MockVision) Analyze(ctx context.Context, image []byte) (ScreenObservation, error) {
	m.calls.Add(1)
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return ScreenObservation{}, args.Error(1)
	}
	return args.Get(0).(ScreenObservation), args.Error(1)
}

// -- Speech Input Mock --

// MockSpeech mocks the SpeechInput interface.
type MockSpeech struct {
	mock.Mock
}

func (m *MockSpeech) Listen(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// -- Speaker Mock --

// MockSpeaker mocks the Speaker interface, recording everything spoken so
// tests can scan the output for forbidden content.
type MockSpeaker struct {
	mock.Mock
	Spoken []string
}

func (m *MockSpeaker) Speak(ctx context.Context, text string) error {
	m.Spoken = append(m.Spoken, text)
	args := m.Called(ctx, text)
	return args.Error(0)
}

// -- App Registry Mock --

// MockRegistry mocks the AppRegistry interface.
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Resolve(name string) (string, bool) {
	args := m.Called(name)
	return args.String(0), args.Bool(1)
}

func (m *MockRegistry) Canonical(name string) (string, bool) {
	args := m.Called(name)
	return args.String(0), args.Bool(1)
}

// -- Transcript Sink Mock --

// MockSink mocks the TranscriptSink interface.
type MockSink struct {
	mock.Mock
}

func (m *MockSink) SaveTranscript(ctx context.Context, result TaskResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}
