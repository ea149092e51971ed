package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// stripedImage alternates black and white columns, which is maximally sharp.
func stripedImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestTransform_CropAndUpscale(t *testing.T) {
	img := solidImage(400, 800, color.White)

	tests := []struct {
		name  string
		opts  PreprocessOptions
		wantW int
		wantH int
	}{
		{"no-op", PreprocessOptions{}, 400, 800},
		{"crop top quarter", PreprocessOptions{CropTopRatio: 0.25}, 400, 200},
		{"upscale narrow", PreprocessOptions{MinWidth: 800}, 800, 1600},
		{"crop then upscale", PreprocessOptions{CropTopRatio: 0.5, MinWidth: 800}, 800, 800},
		{"wide enough", PreprocessOptions{MinWidth: 300}, 400, 800},
		{"ratio out of range ignored", PreprocessOptions{CropTopRatio: 1.5}, 400, 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Transform(img, tt.opts)
			b := out.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantW, tt.wantH, b.Dx(), b.Dy())
			}
		})
	}
}

func TestPreprocess_EncodesPNG(t *testing.T) {
	data := encodePNG(t, stripedImage(200, 100))

	prepared, err := Preprocess(data, PreprocessOptions{MinWidth: 400})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if prepared.Width != 400 || prepared.Height != 200 {
		t.Errorf("Expected 400x200, got %dx%d", prepared.Width, prepared.Height)
	}

	decoded, err := png.Decode(bytes.NewReader(prepared.PNG))
	if err != nil {
		t.Fatalf("Expected PNG output: %v", err)
	}
	if decoded.Bounds().Dx() != 400 {
		t.Errorf("Decoded width %d, want 400", decoded.Bounds().Dx())
	}
}

func TestPreprocess_InvertsDarkImages(t *testing.T) {
	data := encodePNG(t, solidImage(50, 50, color.Black))

	prepared, err := Preprocess(data, PreprocessOptions{InvertBelow: 90})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if prepared.Quality.Brightness != 0 {
		t.Errorf("Expected quality measured before inversion, got brightness %v", prepared.Quality.Brightness)
	}

	decoded, err := png.Decode(bytes.NewReader(prepared.PNG))
	if err != nil {
		t.Fatalf("Expected PNG output: %v", err)
	}
	r, g, b, _ := decoded.At(10, 10).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("Expected dark image to be inverted to white, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestPreprocess_Errors(t *testing.T) {
	if _, err := Preprocess(nil, DefaultPreprocessOptions()); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for empty input, got %v", err)
	}
	if _, err := Preprocess([]byte("not an image"), DefaultPreprocessOptions()); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for garbage input, got %v", err)
	}
}

func TestPreprocess_PixelLimit(t *testing.T) {
	tall := encodePNG(t, solidImage(1, 20000, color.White))

	tests := []struct {
		name    string
		data    []byte
		opts    PreprocessOptions
		wantErr bool
	}{
		{"sliver upscaled past the limit", tall, DefaultPreprocessOptions(), true},
		{"sliver without upscaling", tall, PreprocessOptions{MaxPixels: 25_000_000}, false},
		{"crop keeps upscale under the limit", tall, PreprocessOptions{CropTopRatio: 0.0001, MinWidth: 1000, MaxPixels: 25_000_000}, false},
		{"source over the limit", encodePNG(t, solidImage(20, 20, color.White)), PreprocessOptions{MaxPixels: 399}, true},
		{"limit disabled", encodePNG(t, solidImage(20, 20, color.White)), PreprocessOptions{MinWidth: 100}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Preprocess(tt.data, tt.opts)
			if tt.wantErr {
				if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
					t.Errorf("Expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestMeasureQuality(t *testing.T) {
	white := MeasureQuality(solidImage(20, 20, color.White))
	if white.Brightness != 255 {
		t.Errorf("Expected brightness 255, got %v", white.Brightness)
	}
	if white.Sharpness != 0 {
		t.Errorf("Expected zero sharpness for a flat image, got %v", white.Sharpness)
	}

	striped := MeasureQuality(stripedImage(20, 20))
	if striped.Sharpness <= 1000 {
		t.Errorf("Expected high sharpness for stripes, got %v", striped.Sharpness)
	}
	if striped.Brightness < 120 || striped.Brightness > 135 {
		t.Errorf("Expected mid brightness for stripes, got %v", striped.Brightness)
	}

	if q := MeasureQuality(image.NewRGBA(image.Rect(0, 0, 0, 0))); q != (Quality{}) {
		t.Errorf("Expected zero quality for empty image, got %+v", q)
	}
}
