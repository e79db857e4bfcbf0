package face

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/your-org/photoevents/internal/models"
)

const maxOutputBytes = 1 << 20 // 1MB stdout cap

// waitDelay bounds how long Wait may block after the context fires, so a
// wrapper script whose child keeps the pipes open cannot wedge a worker slot.
const waitDelay = 3 * time.Second

// SubprocessEncoder shells out to an external embedding command. The command
// receives the image path and a model name and prints a single JSON object
// on stdout:
//
//	{"success": true, "embedding": [...], "model": "Facenet", "faces_detected": 1}
//	{"success": false, "error": "..."}
type SubprocessEncoder struct {
	Command string
	Model   models.FaceModel
	Timeout time.Duration
}

func NewSubprocessEncoder(command string, model models.FaceModel, timeout time.Duration) *SubprocessEncoder {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &SubprocessEncoder{Command: command, Model: model, Timeout: timeout}
}

func (e *SubprocessEncoder) Name() string { return "subprocess" }

// encoderOutput mirrors the command's stdout contract. Either the singular
// embedding field or the plural embeddings field may be present.
type encoderOutput struct {
	Success       bool        `json:"success"`
	Embedding     []float32   `json:"embedding"`
	Embeddings    [][]float32 `json:"embeddings"`
	Model         string      `json:"model"`
	FacesDetected int         `json:"faces_detected"`
	Error         string      `json:"error"`
}

func (e *SubprocessEncoder) Encode(ctx context.Context, path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, path)
	}
	if _, err := exec.LookPath(e.Command); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, e.Command)
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.Command, path, string(e.Model))
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrProcessExecution, err)
	}

	output, readErr := io.ReadAll(io.LimitReader(stdout, maxOutputBytes))
	// Drain anything past the cap so the process never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: timeout after %s", ErrProcessExecution, e.Timeout)
	}
	if waitErr != nil {
		slog.Warn("encoder stderr", "output", stderr.String())
		return nil, fmt.Errorf("%w: %v", ErrProcessExecution, waitErr)
	}
	if readErr != nil {
		return nil, fmt.Errorf("%w: read output: %v", ErrProcessExecution, readErr)
	}

	return parseEncoderOutput(output, e.Model)
}

func parseEncoderOutput(output []byte, fallbackModel models.FaceModel) (*Result, error) {
	var out encoderOutput
	if err := json.Unmarshal(bytes.TrimSpace(output), &out); err != nil {
		return nil, fmt.Errorf("%w: parse output: %v", ErrProcessExecution, err)
	}

	if !out.Success {
		if out.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoFaceDetected, out.Error)
		}
		return nil, ErrNoFaceDetected
	}

	embeddings := out.Embeddings
	if len(embeddings) == 0 && len(out.Embedding) > 0 {
		embeddings = [][]float32{out.Embedding}
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: result has no embedding", ErrProcessExecution)
	}

	model := models.FaceModel(out.Model)
	if !model.Valid() {
		model = fallbackModel
	}

	faces := out.FacesDetected
	if faces == 0 {
		faces = len(embeddings)
	}

	return &Result{
		Embeddings:    embeddings,
		Model:         model,
		FacesDetected: faces,
	}, nil
}
