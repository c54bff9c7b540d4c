// Package device talks to an Android device over adb and resolves human app
// names to launchable package identifiers.
package device

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/voxctl/voxctl/internal/config"
	"github.com/voxctl/voxctl/internal/observability"
)

// commandRunner executes one adb invocation. Swappable in tests.
type commandRunner func(ctx context.Context, path string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, path string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, path, args...).Output()
}

// ADBBridge drives a single device through the adb binary. Every command is
// rate limited and bounded by the configured command timeout; coordinates are
// clamped to the configured screen bounds before dispatch.
type ADBBridge struct {
	cfg     config.DeviceConfig
	log     *zap.Logger
	limiter *rate.Limiter
	run     commandRunner
}

// NewADBBridge builds the bridge from configuration.
func NewADBBridge(cfg config.DeviceConfig, log *zap.Logger) *ADBBridge {
	if log == nil {
		log = observability.GetLogger().Named("device")
	}
	return &ADBBridge{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.CommandsPerSec), 1),
		run:     execRunner,
	}
}

// exec runs one adb command against the configured device.
func (b *ADBBridge) exec(ctx context.Context, args ...string) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, b.cfg.CommandTimeout)
	defer cancel()

	full := args
	if b.cfg.Serial != "" {
		full = append([]string{"-s", b.cfg.Serial}, args...)
	}
	b.log.Debug("adb", zap.Strings("args", full))
	out, err := b.run(cctx, b.cfg.ADBPath, full...)
	if err != nil {
		return nil, fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// Capture grabs a PNG screenshot of the current screen.
func (b *ADBBridge) Capture(ctx context.Context) ([]byte, error) {
	return b.exec(ctx, "exec-out", "screencap", "-p")
}

// Tap touches the screen at (x, y), clamped to the screen bounds.
func (b *ADBBridge) Tap(ctx context.Context, x, y int) error {
	x = clampInt(x, 0, b.cfg.ScreenWidth-1)
	y = clampInt(y, 0, b.cfg.ScreenHeight-1)
	_, err := b.exec(ctx, "shell", "input", "tap", fmt.Sprint(x), fmt.Sprint(y))
	return err
}

// TypeText types into the focused field. adb requires spaces escaped as %s
// and rejects shell metacharacters, which are stripped.
func (b *ADBBridge) TypeText(ctx context.Context, text string) error {
	_, err := b.exec(ctx, "shell", "input", "text", escapeInputText(text))
	return err
}

// PressKey sends a single keycode, e.g. KEYCODE_ENTER.
func (b *ADBBridge) PressKey(ctx context.Context, code string) error {
	_, err := b.exec(ctx, "shell", "input", "keyevent", code)
	return err
}

// LaunchApp brings the app's launcher activity to the foreground.
func (b *ADBBridge) LaunchApp(ctx context.Context, packageID string) error {
	_, err := b.exec(ctx, "shell", "monkey", "-p", packageID,
		"-c", "android.intent.category.LAUNCHER", "1")
	return err
}

// Back presses the hardware back key.
func (b *ADBBridge) Back(ctx context.Context) error {
	return b.PressKey(ctx, "KEYCODE_BACK")
}

// Home presses the hardware home key.
func (b *ADBBridge) Home(ctx context.Context) error {
	return b.PressKey(ctx, "KEYCODE_HOME")
}

// SwipeUp scrolls the current view up by half a screen.
func (b *ADBBridge) SwipeUp(ctx context.Context) error {
	x := b.cfg.ScreenWidth / 2
	from := b.cfg.ScreenHeight * 3 / 4
	to := b.cfg.ScreenHeight / 4
	_, err := b.exec(ctx, "shell", "input", "swipe",
		fmt.Sprint(x), fmt.Sprint(from), fmt.Sprint(x), fmt.Sprint(to), "300")
	return err
}

// escapeInputText prepares text for `input text`: spaces become %s and
// characters the shell would interpret are dropped.
func escapeInputText(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case ' ':
			b.WriteString("%s")
		case '\'', '"', '`', '\\', ';', '&', '|', '<', '>', '(', ')', '$':
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
