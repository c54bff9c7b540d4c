// internal/voice/tts.go
package voice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/voxctl/voxctl/internal/config"
	"github.com/voxctl/voxctl/internal/observability"
)

// Player renders synthesized audio on the device's audio output.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

type synthesisRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Synthesizer implements agent.Speaker against an HTTP text-to-speech
// endpoint: post the text, play the returned audio. Callers treat failures
// here as non-fatal, so it reports them plainly and does not retry.
type Synthesizer struct {
	endpoint   string
	apiKey     string
	voice      string
	httpClient *http.Client
	player     Player
	logger     *zap.Logger
}

// NewSynthesizer wires the speaker from configuration.
func NewSynthesizer(cfg config.VoiceConfig, player Player, logger *zap.Logger) (*Synthesizer, error) {
	if cfg.TTSEndpoint == "" {
		return nil, fmt.Errorf("voice: tts endpoint is required")
	}
	if logger == nil {
		logger = observability.GetLogger().Named("voice.tts")
	}
	return &Synthesizer{
		endpoint:   cfg.TTSEndpoint,
		apiKey:     cfg.TTSAPIKey,
		voice:      cfg.TTSVoice,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		player:     player,
		logger:     logger,
	}, nil
}

// Speak synthesizes and plays text.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	body, err := json.Marshal(synthesisRequest{Text: text, Voice: s.voice})
	if err != nil {
		return fmt.Errorf("voice: marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("voice: build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("voice: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("voice: synthesis service returned %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("voice: read synthesis response: %w", err)
	}

	if err := s.player.Play(ctx, audio); err != nil {
		return fmt.Errorf("voice: playback: %w", err)
	}
	s.logger.Debug("spoke", zap.Int("chars", len(text)))
	return nil
}
