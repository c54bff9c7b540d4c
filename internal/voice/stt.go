// Package voice adapts HTTP speech services to the agent's speech
// interfaces: a transcriber for user utterances and a speaker for replies.
package voice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/voxctl/voxctl/internal/config"
	"github.com/voxctl/voxctl/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AudioSource captures one spoken utterance from the microphone, returning
// WAV bytes. Recording length is the source's concern (silence detection or
// a fixed window).
type AudioSource interface {
	Record(ctx context.Context) ([]byte, error)
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcriber implements agent.SpeechInput against a Whisper-style HTTP
// transcription endpoint: record one utterance, post it, return the text.
type Transcriber struct {
	endpoint   string
	httpClient *http.Client
	source     AudioSource
	logger     *zap.Logger

	// backoffFactory is swappable so tests don't wait out real intervals.
	backoffFactory func() backoff.BackOff
}

// NewTranscriber wires the transcriber from configuration.
func NewTranscriber(cfg config.VoiceConfig, source AudioSource, logger *zap.Logger) (*Transcriber, error) {
	if cfg.STTEndpoint == "" {
		return nil, fmt.Errorf("voice: stt endpoint is required")
	}
	if logger == nil {
		logger = observability.GetLogger().Named("voice.stt")
	}
	return &Transcriber{
		endpoint:   cfg.STTEndpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		source:     source,
		logger:     logger,
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 20 * time.Second
			b.MaxInterval = 5 * time.Second
			return b
		},
	}, nil
}

// Listen records one utterance and transcribes it. Transient HTTP failures
// are retried with exponential backoff; client errors are not.
func (t *Transcriber) Listen(ctx context.Context) (string, error) {
	audio, err := t.source.Record(ctx)
	if err != nil {
		return "", fmt.Errorf("voice: record: %w", err)
	}
	if len(audio) == 0 {
		return "", nil
	}

	var text string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(audio))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Content-Type", "audio/wav")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			t.logger.Warn("transcription request failed, retrying", zap.Error(err))
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("transcription service returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("transcription service returned %d", resp.StatusCode))
		}

		var payload transcriptionResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		text = payload.Text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(t.backoffFactory(), ctx)); err != nil {
		return "", fmt.Errorf("voice: transcribe: %w", err)
	}

	t.logger.Debug("utterance transcribed", zap.Int("audio_bytes", len(audio)))
	return text, nil
}
