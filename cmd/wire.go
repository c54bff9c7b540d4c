// File: cmd/wire.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/voxctl/voxctl/internal/agent"
	"github.com/voxctl/voxctl/internal/config"
	"github.com/voxctl/voxctl/internal/device"
	"github.com/voxctl/voxctl/internal/server"
	"github.com/voxctl/voxctl/internal/store"
	"github.com/voxctl/voxctl/internal/vision"
	"github.com/voxctl/voxctl/internal/voice"
)

// engineHandle bundles the wired orchestrator with the pieces commands need
// alongside it.
type engineHandle struct {
	orch        *agent.Orchestrator
	transcriber *voice.Transcriber
	registry    *prometheus.Registry

	pool *pgxpool.Pool
}

// Close releases resources held by the engine's collaborators.
func (h *engineHandle) Close() {
	if h.pool != nil {
		h.pool.Close()
	}
}

// buildEngine assembles the orchestrator and all its collaborators from the
// loaded configuration.
func buildEngine(ctx context.Context, cfg *config.Config, log *zap.Logger) (*engineHandle, error) {
	bridge := device.NewADBBridge(cfg.Device, log.Named("device"))
	registry := device.NewRegistry(cfg.Device.Apps)

	analyzer, err := vision.NewGeminiAnalyzer(ctx, cfg.Vision, log.Named("vision"))
	if err != nil {
		return nil, err
	}

	source, err := voice.NewCommandSource(cfg.Voice.RecordCmd, cfg.Voice.Timeout)
	if err != nil {
		return nil, err
	}
	transcriber, err := voice.NewTranscriber(cfg.Voice, source, log.Named("voice.stt"))
	if err != nil {
		return nil, err
	}
	player, err := voice.NewCommandPlayer(cfg.Voice.PlayCmd, cfg.Voice.Timeout)
	if err != nil {
		return nil, err
	}
	speaker, err := voice.NewSynthesizer(cfg.Voice, player, log.Named("voice.tts"))
	if err != nil {
		return nil, err
	}

	h := &engineHandle{transcriber: transcriber, registry: prometheus.NewRegistry()}

	var sink agent.TranscriptSink
	if cfg.Store.Enabled {
		pool, err := pgxpool.New(ctx, cfg.Store.URL)
		if err != nil {
			return nil, fmt.Errorf("connect transcript store: %w", err)
		}
		st, err := store.New(ctx, pool, log)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		h.pool = pool
		sink = st
	}

	h.orch = agent.NewOrchestrator(agent.OptionsFromConfig(cfg), agent.Collaborators{
		Device:   bridge,
		Vision:   analyzer,
		Speech:   transcriber,
		Speaker:  speaker,
		Registry: registry,
		Sink:     sink,
	}, log.Named("agent"))

	metrics := server.NewMetrics(h.registry)
	h.orch.SetHooks(metrics.Hooks())

	return h, nil
}
