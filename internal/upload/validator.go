package upload

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/webp"

	"github.com/your-org/photoevents/internal/config"
)

// Metadata describes an accepted upload.
type Metadata struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Format     string `json:"format"`
	Size       int64  `json:"size"`
	HasAlpha   bool   `json:"has_alpha"`
	ColorSpace string `json:"color_space"`
	Density    int    `json:"density,omitempty"`
}

// ValidationError carries the specific check that failed.
type ValidationError struct {
	Check  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid upload (%s): %s", e.Check, e.Reason)
}

type Validator struct {
	cfg config.UploadConfig
}

func NewValidator(cfg config.UploadConfig) *Validator {
	return &Validator{cfg: cfg}
}

var acceptedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"webp": true,
}

// Validate checks the file at path against size, format, dimension and
// density limits. All checks must pass; the first failure short-circuits
// with a *ValidationError naming the failed check.
func (v *Validator) Validate(path, originalName string) (*Metadata, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}
	if stat.Size() > v.cfg.MaxFileSize {
		return nil, &ValidationError{
			Check:  "size",
			Reason: fmt.Sprintf("%d bytes exceeds limit of %d", stat.Size(), v.cfg.MaxFileSize),
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	cfgImg, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return nil, &ValidationError{
			Check:  "format",
			Reason: fmt.Sprintf("cannot decode %q: %v", originalName, err),
		}
	}
	if !acceptedFormats[format] {
		return nil, &ValidationError{
			Check:  "format",
			Reason: fmt.Sprintf("format %q not accepted (jpeg, png, webp)", format),
		}
	}

	if cfgImg.Width > v.cfg.MaxDimension || cfgImg.Height > v.cfg.MaxDimension {
		return nil, &ValidationError{
			Check: "dimensions",
			Reason: fmt.Sprintf("%dx%d exceeds limit of %dx%d",
				cfgImg.Width, cfgImg.Height, v.cfg.MaxDimension, v.cfg.MaxDimension),
		}
	}

	density := 0
	if format == "jpeg" {
		if _, err := f.Seek(0, io.SeekStart); err == nil {
			density = jfifDensity(f)
		}
	}
	if density > v.cfg.MaxDensity {
		return nil, &ValidationError{
			Check:  "density",
			Reason: fmt.Sprintf("%d DPI exceeds limit of %d", density, v.cfg.MaxDensity),
		}
	}

	return &Metadata{
		Width:      cfgImg.Width,
		Height:     cfgImg.Height,
		Format:     format,
		Size:       stat.Size(),
		HasAlpha:   hasAlpha(cfgImg.ColorModel),
		ColorSpace: colorSpace(cfgImg.ColorModel),
		Density:    density,
	}, nil
}

func hasAlpha(m color.Model) bool {
	switch m {
	case color.NRGBAModel, color.RGBAModel, color.NRGBA64Model, color.RGBA64Model:
		return true
	}
	return false
}

func colorSpace(m color.Model) string {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return "gray"
	case color.CMYKModel:
		return "cmyk"
	}
	return "srgb"
}

// jfifDensity reads the pixel density from a JPEG JFIF APP0 segment.
// Returns 0 when the file carries no density information or uses
// non-inch units.
func jfifDensity(r io.Reader) int {
	header := make([]byte, 20)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0
	}
	// SOI, APP0 marker, "JFIF\0"
	if header[0] != 0xFF || header[1] != 0xD8 || header[2] != 0xFF || header[3] != 0xE0 {
		return 0
	}
	if string(header[6:11]) != "JFIF\x00" {
		return 0
	}
	// units byte: 1 = dots per inch
	if header[13] != 1 {
		return 0
	}
	x := int(binary.BigEndian.Uint16(header[14:16]))
	y := int(binary.BigEndian.Uint16(header[16:18]))
	if y > x {
		return y
	}
	return x
}
