package upload

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/your-org/photoevents/internal/config"
)

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxFileSize:  10 * 1024 * 1024,
		MaxDimension: 100,
		MaxDensity:   600,
	}
}

func writeJPEG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, "test.jpg")
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, "test.png")
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateAcceptsJPEG(t *testing.T) {
	v := NewValidator(testUploadConfig())
	path := writeJPEG(t, t.TempDir(), 80, 60)

	meta, err := v.Validate(path, "party.jpg")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if meta.Format != "jpeg" {
		t.Errorf("format = %s, want jpeg", meta.Format)
	}
	if meta.Width != 80 || meta.Height != 60 {
		t.Errorf("dimensions = %dx%d, want 80x60", meta.Width, meta.Height)
	}
	if meta.Size == 0 {
		t.Error("size not populated")
	}
}

func TestValidateAcceptsPNG(t *testing.T) {
	v := NewValidator(testUploadConfig())
	path := writePNG(t, t.TempDir(), 50, 50)

	meta, err := v.Validate(path, "party.png")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if meta.Format != "png" {
		t.Errorf("format = %s, want png", meta.Format)
	}
	if !meta.HasAlpha {
		t.Error("NRGBA png should report alpha")
	}
}

func TestValidateRejectsOversizedDimensions(t *testing.T) {
	v := NewValidator(testUploadConfig())
	path := writeJPEG(t, t.TempDir(), 150, 90)

	_, err := v.Validate(path, "huge.jpg")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if vErr.Check != "dimensions" {
		t.Errorf("failed check = %s, want dimensions", vErr.Check)
	}
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	cfg := testUploadConfig()
	cfg.MaxFileSize = 10
	v := NewValidator(cfg)
	path := writeJPEG(t, t.TempDir(), 10, 10)

	_, err := v.Validate(path, "big.jpg")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if vErr.Check != "size" {
		t.Errorf("failed check = %s, want size", vErr.Check)
	}
}

func TestValidateRejectsUnknownFormat(t *testing.T) {
	v := NewValidator(testUploadConfig())
	path := filepath.Join(t.TempDir(), "not-an-image.jpg")
	if err := os.WriteFile(path, []byte("plain text pretending"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := v.Validate(path, "not-an-image.jpg")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if vErr.Check != "format" {
		t.Errorf("failed check = %s, want format", vErr.Check)
	}
}

func TestJFIFDensity(t *testing.T) {
	build := func(units byte, x, y uint16) []byte {
		buf := []byte{
			0xFF, 0xD8, // SOI
			0xFF, 0xE0, // APP0
			0x00, 0x10, // segment length
			'J', 'F', 'I', 'F', 0x00,
			0x01, 0x02, // version
			units,
		}
		buf = binary.BigEndian.AppendUint16(buf, x)
		buf = binary.BigEndian.AppendUint16(buf, y)
		buf = append(buf, 0x00, 0x00) // thumbnail dims
		return buf
	}

	tests := []struct {
		name  string
		input []byte
		want  int
	}{
		{"dpi 300", build(1, 300, 300), 300},
		{"asymmetric takes max", build(1, 72, 720), 720},
		{"aspect ratio units", build(0, 1, 1), 0},
		{"dots per cm", build(2, 300, 300), 0},
		{"not a jpeg", []byte("GIF89a. definitely not jpeg."), 0},
		{"truncated", []byte{0xFF, 0xD8}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jfifDensity(bytes.NewReader(tt.input)); got != tt.want {
				t.Errorf("jfifDensity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidateRejectsHighDensity(t *testing.T) {
	cfg := testUploadConfig()
	v := NewValidator(cfg)

	// Hand-assemble a JFIF header claiming 720 DPI in front of a real
	// JPEG body so DecodeConfig still succeeds.
	path := writeJPEG(t, t.TempDir(), 10, 10)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	header := []byte{
		0xFF, 0xD8,
		0xFF, 0xE0,
		0x00, 0x10,
		'J', 'F', 'I', 'F', 0x00,
		0x01, 0x02,
		0x01,       // inches
		0x02, 0xD0, // 720
		0x02, 0xD0,
		0x00, 0x00,
	}
	dense := append(header, data[2:]...) // keep original after SOI
	densePath := filepath.Join(t.TempDir(), "dense.jpg")
	if err := os.WriteFile(densePath, dense, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = v.Validate(densePath, "dense.jpg")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if vErr.Check != "density" {
		t.Errorf("failed check = %s, want density", vErr.Check)
	}
}
