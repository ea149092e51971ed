package ocr

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
)

// PreprocessOptions controls image preparation before OCR.
type PreprocessOptions struct {
	// CropTopRatio keeps only this top fraction of the image; 0 disables cropping.
	CropTopRatio float64
	// MinWidth upscales narrower images; 0 disables upscaling.
	MinWidth int
	// InvertBelow inverts images darker than this mean gray level (dark mode); 0 disables.
	InvertBelow float64
	// SharpenBelow sharpens images whose Laplacian variance is under this value; 0 disables.
	SharpenBelow float64
	// MaxPixels caps the decoded and the transformed pixel count; 0 disables.
	MaxPixels int64
}

// DefaultPreprocessOptions returns default preprocessing options
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		MinWidth:     1000,
		InvertBelow:  90,
		SharpenBelow: 100,
		MaxPixels:    25_000_000,
	}
}

// Prepared is a preprocessed image ready for an OCR engine.
type Prepared struct {
	PNG     []byte
	Width   int
	Height  int
	Quality Quality
}

// Preprocess decodes an encoded image, applies the configured transforms and
// re-encodes it as PNG.
func Preprocess(data []byte, opts PreprocessOptions) (*Prepared, error) {
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("image is empty", nil)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewValidationError("image could not be decoded", err)
	}
	if err := checkPixels("image", int64(cfg.Width), int64(cfg.Height), opts.MaxPixels); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewValidationError("image could not be decoded", err)
	}

	// Orientation may have swapped the axes, so size the output from the decoded bounds.
	w, h := outputSize(img.Bounds().Dx(), img.Bounds().Dy(), opts)
	if err := checkPixels("upscaled image", w, h, opts.MaxPixels); err != nil {
		return nil, err
	}

	img = Transform(img, opts)
	quality := MeasureQuality(img)

	if opts.InvertBelow > 0 && quality.Brightness < opts.InvertBelow {
		img = imaging.Invert(img)
	}
	if opts.SharpenBelow > 0 && quality.Sharpness < opts.SharpenBelow {
		img = imaging.Sharpen(img, 1.0)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, apperrors.NewOCRError("failed to encode preprocessed image", err)
	}

	b := img.Bounds()
	return &Prepared{PNG: buf.Bytes(), Width: b.Dx(), Height: b.Dy(), Quality: quality}, nil
}

// outputSize predicts the dimensions Transform produces for a w x h image.
func outputSize(w, h int, opts PreprocessOptions) (int64, int64) {
	ow, oh := int64(w), int64(h)
	if opts.CropTopRatio > 0 && opts.CropTopRatio < 1 {
		if keep := int64(float64(oh) * opts.CropTopRatio); keep > 0 {
			oh = keep
		}
	}
	if opts.MinWidth > 0 && ow > 0 && ow < int64(opts.MinWidth) {
		oh = int64(float64(oh)*float64(opts.MinWidth)/float64(ow) + 0.5)
		ow = int64(opts.MinWidth)
	}
	return ow, oh
}

func checkPixels(what string, w, h, limit int64) error {
	if limit <= 0 {
		return nil
	}
	if w > limit || h > limit || w*h > limit {
		return apperrors.NewValidationError(
			fmt.Sprintf("%s of %dx%d exceeds the %d pixel limit", what, w, h, limit), nil)
	}
	return nil
}

// Transform applies the geometric steps: top crop, then upscale.
func Transform(img image.Image, opts PreprocessOptions) image.Image {
	b := img.Bounds()
	if opts.CropTopRatio > 0 && opts.CropTopRatio < 1 {
		keep := int(float64(b.Dy()) * opts.CropTopRatio)
		if keep > 0 {
			img = imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+keep))
		}
	}

	if w := img.Bounds().Dx(); opts.MinWidth > 0 && w > 0 && w < opts.MinWidth {
		img = imaging.Resize(img, opts.MinWidth, 0, imaging.Lanczos)
	}
	return img
}
