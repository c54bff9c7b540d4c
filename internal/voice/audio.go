// internal/voice/audio.go
package voice

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// CommandSource records microphone audio by running a host command (arecord
// by default) and capturing its stdout.
type CommandSource struct {
	cmd     []string
	timeout time.Duration
}

// NewCommandSource builds an audio source from a command line like
// ["arecord", "-q", ..., "-"].
func NewCommandSource(cmd []string, timeout time.Duration) (*CommandSource, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("voice: record command is required")
	}
	return &CommandSource{cmd: cmd, timeout: timeout}, nil
}

// Record captures one utterance of audio.
func (s *CommandSource) Record(ctx context.Context) ([]byte, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := exec.CommandContext(cctx, s.cmd[0], s.cmd[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("voice: record command: %w", err)
	}
	return out, nil
}

// CommandPlayer plays synthesized audio by piping it to a host command
// (mpg123 by default) on stdin.
type CommandPlayer struct {
	cmd     []string
	timeout time.Duration
}

// NewCommandPlayer builds a player from a command line like ["mpg123", "-q", "-"].
func NewCommandPlayer(cmd []string, timeout time.Duration) (*CommandPlayer, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("voice: play command is required")
	}
	return &CommandPlayer{cmd: cmd, timeout: timeout}, nil
}

// Play renders audio on the host's output.
func (p *CommandPlayer) Play(ctx context.Context, audio []byte) error {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	c := exec.CommandContext(cctx, p.cmd[0], p.cmd[1:]...)
	c.Stdin = bytes.NewReader(audio)
	if err := c.Run(); err != nil {
		return fmt.Errorf("voice: play command: %w", err)
	}
	return nil
}
