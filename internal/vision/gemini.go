// Package vision turns device screenshots into structured screen
// observations using a multimodal Gemini model.
package vision

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/voxctl/voxctl/internal/agent"
	"github.com/voxctl/voxctl/internal/config"
	"github.com/voxctl/voxctl/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// contentGenerator is the slice of the genai client we use, extracted so
// tests can stand in for the real service.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiAnalyzer implements agent.VisionProvider on the Gemini API.
type GeminiAnalyzer struct {
	gen   contentGenerator
	model string
	log   *zap.Logger
}

// NewGeminiAnalyzer builds the analyzer from configuration. The API key is
// required; the model defaults to a flash-tier multimodal model.
func NewGeminiAnalyzer(ctx context.Context, cfg config.VisionConfig, log *zap.Logger) (*GeminiAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vision: api key is required")
	}
	if log == nil {
		log = observability.GetLogger().Named("vision")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("vision: create client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiAnalyzer{gen: client.Models, model: model, log: log}, nil
}

// Analyze sends the screenshot with the extraction prompt and decodes the
// model's JSON reply.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, image []byte) (agent.ScreenObservation, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, "image/png"),
			genai.NewPartFromText(screenPrompt),
		}, genai.RoleUser),
	}

	resp, err := g.gen.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return agent.ScreenObservation{}, fmt.Errorf("vision: generate: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return agent.ScreenObservation{}, fmt.Errorf("vision: empty model response")
	}

	obs, err := decodeObservation(text)
	if err != nil {
		g.log.Warn("undecodable vision reply", zap.String("reply", truncate(text, 200)))
		return agent.ScreenObservation{}, err
	}
	return obs, nil
}

// decodeObservation parses the model reply, tolerating a markdown code fence
// around the JSON body.
func decodeObservation(text string) (agent.ScreenObservation, error) {
	var obs agent.ScreenObservation
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &obs); err != nil {
		return agent.ScreenObservation{}, fmt.Errorf("vision: decode observation: %w", err)
	}
	return obs, nil
}

// stripCodeFence removes a surrounding ```json ... ``` fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
