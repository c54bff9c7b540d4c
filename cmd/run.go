// File: cmd/run.go
package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voxctl/voxctl/internal/agent"
	"github.com/voxctl/voxctl/internal/observability"
)

// runCmd executes a single spoken command given as text and exits.
var runCmd = &cobra.Command{
	Use:   "run <utterance>",
	Short: "Run one command against the device and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := observability.GetLogger()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		h, err := buildEngine(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer h.Close()

		input := strings.Join(args, " ")
		result, err := h.orch.ProcessCommand(ctx, input)
		if err != nil {
			return err
		}

		fmt.Printf("[%s] %s\n", result.Status, result.Response)
		if result.Status != agent.StatusSucceeded {
			log.Warn("task did not succeed",
				zap.String("error_kind", string(result.ErrorKind)),
				zap.Int("iterations", result.Iterations))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
