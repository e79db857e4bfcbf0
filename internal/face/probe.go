package face

import (
	"context"
	"log/slog"
	"os/exec"
	"time"

	"github.com/your-org/photoevents/internal/config"
	"github.com/your-org/photoevents/internal/models"
)

// NewFromProbe selects the encoder implementation once at startup. It runs
// the external command with --probe under a short timeout; on any failure it
// returns the deterministic fallback encoder for the process lifetime.
func NewFromProbe(cfg config.FaceConfig) Encoder {
	if probeCommand(cfg.EncoderCommand, cfg.ProbeTimeout) {
		slog.Info("face encoder available", "command", cfg.EncoderCommand, "model", cfg.Model)
		return NewSubprocessEncoder(cfg.EncoderCommand, models.FaceModel(cfg.Model), cfg.EncodeTimeout)
	}

	slog.Warn("face encoder unavailable, using fallback encodings",
		"command", cfg.EncoderCommand)
	return FallbackEncoder{}
}

func probeCommand(command string, timeout time.Duration) bool {
	if _, err := exec.LookPath(command); err != nil {
		return false
	}

	if timeout == 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := exec.CommandContext(ctx, command, "--probe").Run(); err != nil {
		return false
	}
	return true
}
