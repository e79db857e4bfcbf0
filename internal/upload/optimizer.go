package upload

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/your-org/photoevents/internal/config"
)

type Optimizer struct {
	cfg config.UploadConfig
}

func NewOptimizer(cfg config.UploadConfig) *Optimizer {
	return &Optimizer{cfg: cfg}
}

// Optimize re-encodes the accepted image at inputPath into a JPEG bounded by
// the configured resolution, preserving aspect ratio and never upscaling.
// The input temp file is removed whether optimization succeeds or fails.
func (o *Optimizer) Optimize(inputPath, filename string) (string, error) {
	defer os.Remove(inputPath)

	outputPath := filepath.Join(filepath.Dir(inputPath), "optimized_"+filename)
	if err := resizeToJPEG(inputPath, outputPath,
		o.cfg.OptimizeWidth, o.cfg.OptimizeHeight, o.cfg.JPEGQuality); err != nil {
		return "", err
	}
	return outputPath, nil
}

// OptimizeSelfie produces the smaller, higher-quality rendition used for
// reference selfies before encoding.
func (o *Optimizer) OptimizeSelfie(inputPath string) (string, error) {
	defer os.Remove(inputPath)

	outputPath := inputPath + "_ref.jpg"
	if err := resizeToJPEG(inputPath, outputPath,
		o.cfg.SelfieMaxSize, o.cfg.SelfieMaxSize, o.cfg.SelfieQuality); err != nil {
		return "", err
	}
	return outputPath, nil
}

func resizeToJPEG(inputPath, outputPath string, maxW, maxH, quality int) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	newW, newH := fitWithin(w, h, maxW, maxH)
	if newW != w || newH != h {
		resized := image.NewRGBA(image.Rect(0, 0, newW, newH))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create optimized file: %w", err)
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: quality}); err != nil {
		out.Close()
		os.Remove(outputPath)
		return fmt.Errorf("encode optimized jpeg: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("close optimized file: %w", err)
	}
	return nil
}

// fitWithin scales (w, h) down to fit inside (maxW, maxH) keeping aspect
// ratio. Images already within bounds are returned unchanged.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}

	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return newW, newH
}
