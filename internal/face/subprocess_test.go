package face

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/your-org/photoevents/internal/models"
)

func writeEncoderScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "encoder.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeImageFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("image bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSubprocessEncoderRunsCommand(t *testing.T) {
	script := writeEncoderScript(t,
		`echo '{"success": true, "embedding": [0.1, 0.2], "model": "Facenet", "faces_detected": 1}'`)
	enc := NewSubprocessEncoder(script, models.ModelFacenet, 5*time.Second)

	result, err := enc.Encode(context.Background(), writeImageFile(t))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(result.Embeddings) != 1 || len(result.Embeddings[0]) != 2 {
		t.Errorf("unexpected embeddings %+v", result.Embeddings)
	}
	if result.Model != models.ModelFacenet {
		t.Errorf("model = %s, want Facenet", result.Model)
	}
}

func TestSubprocessEncoderMissingImage(t *testing.T) {
	script := writeEncoderScript(t, `echo '{"success": true}'`)
	enc := NewSubprocessEncoder(script, models.ModelFacenet, 5*time.Second)

	_, err := enc.Encode(context.Background(), filepath.Join(t.TempDir(), "absent.jpg"))
	if !errors.Is(err, ErrImageNotFound) {
		t.Errorf("error = %v, want ErrImageNotFound", err)
	}
}

func TestSubprocessEncoderMissingCommand(t *testing.T) {
	enc := NewSubprocessEncoder(filepath.Join(t.TempDir(), "absent-encoder"), models.ModelFacenet, 5*time.Second)

	_, err := enc.Encode(context.Background(), writeImageFile(t))
	if !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("error = %v, want ErrScriptNotFound", err)
	}
}

func TestSubprocessEncoderDrainsOverCapOutput(t *testing.T) {
	// The command writes 1.5MB, past the 1MB cap. The tail must be drained
	// so the process can exit instead of blocking on a full pipe until the
	// timeout kills it.
	script := writeEncoderScript(t, `head -c 1500000 /dev/zero | tr '\0' x`)
	enc := NewSubprocessEncoder(script, models.ModelFacenet, 5*time.Second)

	start := time.Now()
	_, err := enc.Encode(context.Background(), writeImageFile(t))
	elapsed := time.Since(start)

	if !errors.Is(err, ErrProcessExecution) {
		t.Fatalf("error = %v, want ErrProcessExecution", err)
	}
	if elapsed >= 4*time.Second {
		t.Errorf("Encode took %s; over-cap output should not stall until the timeout", elapsed)
	}
}

func TestSubprocessEncoderTimeoutWithLingeringChild(t *testing.T) {
	// A background child inherits the stdout pipe and outlives the killed
	// script. WaitDelay must unblock Encode shortly after the deadline.
	script := writeEncoderScript(t, "sleep 30 &\nsleep 30")
	enc := NewSubprocessEncoder(script, models.ModelFacenet, 1*time.Second)

	start := time.Now()
	_, err := enc.Encode(context.Background(), writeImageFile(t))
	elapsed := time.Since(start)

	if !errors.Is(err, ErrProcessExecution) {
		t.Fatalf("error = %v, want ErrProcessExecution", err)
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("error %q should report the timeout", err)
	}
	if elapsed >= 1*time.Second+waitDelay+5*time.Second {
		t.Errorf("Encode took %s; must return soon after the deadline, not wait on the child", elapsed)
	}
}

func TestParseEncoderOutputSingleEmbedding(t *testing.T) {
	output := []byte(`{"success": true, "embedding": [0.1, 0.2, 0.3], "model": "Facenet", "faces_detected": 1}`)

	result, err := parseEncoderOutput(output, models.ModelFacenet)
	if err != nil {
		t.Fatalf("parseEncoderOutput() error = %v", err)
	}
	if len(result.Embeddings) != 1 {
		t.Fatalf("got %d embeddings, want 1", len(result.Embeddings))
	}
	if len(result.Embeddings[0]) != 3 {
		t.Errorf("embedding length = %d, want 3", len(result.Embeddings[0]))
	}
	if result.Model != models.ModelFacenet {
		t.Errorf("model = %s, want Facenet", result.Model)
	}
	if result.FacesDetected != 1 {
		t.Errorf("faces detected = %d, want 1", result.FacesDetected)
	}
}

func TestParseEncoderOutputMultipleFaces(t *testing.T) {
	output := []byte(`{"success": true, "embeddings": [[0.1, 0.2], [0.3, 0.4]], "model": "ArcFace"}`)

	result, err := parseEncoderOutput(output, models.ModelFacenet)
	if err != nil {
		t.Fatalf("parseEncoderOutput() error = %v", err)
	}
	if len(result.Embeddings) != 2 {
		t.Fatalf("got %d embeddings, want 2", len(result.Embeddings))
	}
	if result.Model != models.ModelArcFace {
		t.Errorf("model = %s, want ArcFace", result.Model)
	}
	// faces_detected omitted: inferred from embedding count
	if result.FacesDetected != 2 {
		t.Errorf("faces detected = %d, want 2", result.FacesDetected)
	}
}

func TestParseEncoderOutputNoFace(t *testing.T) {
	output := []byte(`{"success": false, "error": "No face detected in image"}`)

	_, err := parseEncoderOutput(output, models.ModelFacenet)
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Fatalf("error = %v, want ErrNoFaceDetected", err)
	}
	if !strings.Contains(err.Error(), "No face detected in image") {
		t.Errorf("error %q should carry the encoder's message", err)
	}
}

func TestParseEncoderOutputFailureWithoutMessage(t *testing.T) {
	_, err := parseEncoderOutput([]byte(`{"success": false}`), models.ModelFacenet)
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("error = %v, want ErrNoFaceDetected", err)
	}
}

func TestParseEncoderOutputInvalidJSON(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"garbage", "not json at all"},
		{"truncated", `{"success": true, "embe`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseEncoderOutput([]byte(tt.output), models.ModelFacenet)
			if !errors.Is(err, ErrProcessExecution) {
				t.Errorf("error = %v, want ErrProcessExecution", err)
			}
		})
	}
}

func TestParseEncoderOutputUnknownModelFallsBack(t *testing.T) {
	output := []byte(`{"success": true, "embedding": [0.5], "model": "SomethingNew"}`)

	result, err := parseEncoderOutput(output, models.ModelFacenet512)
	if err != nil {
		t.Fatalf("parseEncoderOutput() error = %v", err)
	}
	if result.Model != models.ModelFacenet512 {
		t.Errorf("model = %s, want configured fallback Facenet512", result.Model)
	}
}

func TestParseEncoderOutputSuccessWithoutEmbedding(t *testing.T) {
	_, err := parseEncoderOutput([]byte(`{"success": true, "model": "Facenet"}`), models.ModelFacenet)
	if !errors.Is(err, ErrProcessExecution) {
		t.Errorf("error = %v, want ErrProcessExecution", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no face", ErrNoFaceDetected, false},
		{"missing image", ErrImageNotFound, false},
		{"missing script", ErrScriptNotFound, false},
		{"process failure", ErrProcessExecution, true},
		{"arbitrary error", errors.New("network blip"), true},
		{"wrapped no face", errors.Join(errors.New("ctx"), ErrNoFaceDetected), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
