package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxctl/voxctl/internal/config"
)

type staticSource struct {
	audio []byte
	err   error
}

func (s *staticSource) Record(context.Context) ([]byte, error) { return s.audio, s.err }

type recordingPlayer struct {
	played [][]byte
	err    error
}

func (p *recordingPlayer) Play(_ context.Context, audio []byte) error {
	p.played = append(p.played, audio)
	return p.err
}

func newTestTranscriber(t *testing.T, endpoint string, source AudioSource) *Transcriber {
	t.Helper()
	tr, err := NewTranscriber(config.VoiceConfig{
		STTEndpoint: endpoint,
		Timeout:     time.Second,
	}, source, zap.NewNop())
	require.NoError(t, err)
	tr.backoffFactory = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
	}
	return tr
}

func TestListen_TranscribesUtterance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"text": "open gmail"}`))
	}))
	defer srv.Close()

	tr := newTestTranscriber(t, srv.URL, &staticSource{audio: []byte("RIFF....")})

	text, err := tr.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "open gmail", text)
}

func TestListen_EmptyRecordingIsEmptyText(t *testing.T) {
	tr := newTestTranscriber(t, "http://127.0.0.1:1", &staticSource{audio: nil})

	text, err := tr.Listen(context.Background())
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestListen_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"text": "try again"}`))
	}))
	defer srv.Close()

	tr := newTestTranscriber(t, srv.URL, &staticSource{audio: []byte("RIFF....")})

	text, err := tr.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "try again", text)
	assert.Equal(t, int64(2), hits.Load())
}

func TestListen_ClientErrorIsPermanent(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tr := newTestTranscriber(t, srv.URL, &staticSource{audio: []byte("RIFF....")})

	_, err := tr.Listen(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(1), hits.Load(), "4xx responses must not be retried")
}

func TestSpeak_PostsTextAndPlaysAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req synthesisRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello!", req.Text)
		assert.Equal(t, "nova", req.Voice)
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	player := &recordingPlayer{}
	s, err := NewSynthesizer(config.VoiceConfig{
		TTSEndpoint: srv.URL,
		TTSAPIKey:   "test-key",
		TTSVoice:    "nova",
		Timeout:     time.Second,
	}, player, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Speak(context.Background(), "Hello!"))
	require.Len(t, player.played, 1)
	assert.Equal(t, []byte("mp3-bytes"), player.played[0])
}

func TestSpeak_EmptyTextIsNoOp(t *testing.T) {
	player := &recordingPlayer{}
	s, err := NewSynthesizer(config.VoiceConfig{
		TTSEndpoint: "http://127.0.0.1:1",
		Timeout:     time.Second,
	}, player, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Speak(context.Background(), ""))
	assert.Empty(t, player.played)
}

func TestSpeak_ServiceErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, err := NewSynthesizer(config.VoiceConfig{
		TTSEndpoint: srv.URL,
		Timeout:     time.Second,
	}, &recordingPlayer{}, zap.NewNop())
	require.NoError(t, err)

	assert.Error(t, s.Speak(context.Background(), "Hello!"))
}

func TestNewAdapters_RequireEndpoints(t *testing.T) {
	_, err := NewTranscriber(config.VoiceConfig{}, &staticSource{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewSynthesizer(config.VoiceConfig{}, &recordingPlayer{}, zap.NewNop())
	assert.Error(t, err)
}
