// File: cmd/listen.go
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voxctl/voxctl/internal/agent"
	"github.com/voxctl/voxctl/internal/observability"
)

// listenCmd runs the hands-free loop: capture an utterance, run it as a
// task, speak the result, repeat until interrupted.
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Continuously listen for voice commands and execute them",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := observability.GetLogger()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		h, err := buildEngine(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer h.Close()

		log.Info("listening for commands; say something or press Ctrl-C to exit")
		for {
			if ctx.Err() != nil {
				return nil
			}

			utterance, err := h.transcriber.Listen(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				log.Warn("could not capture utterance", zap.Error(err))
				continue
			}
			if strings.TrimSpace(utterance) == "" {
				continue
			}

			result, err := h.orch.ProcessCommand(ctx, utterance)
			if err != nil {
				// The lease makes this unreachable in a single loop, but a
				// second front end (serve) may hold the agent.
				if errors.Is(err, agent.ErrAgentBusy) {
					log.Warn("agent busy, dropping utterance")
					continue
				}
				return err
			}
			log.Info("task complete",
				zap.String("status", string(result.Status)),
				zap.String("response", result.Response))
		}
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
