package ocr

import (
	"image"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

// Quality summarizes how readable a screenshot is likely to be.
type Quality struct {
	// Brightness is the mean gray level, 0..255.
	Brightness float64 `json:"brightness"`
	// Sharpness is the variance of the Laplacian; low values mean blur.
	Sharpness float64 `json:"sharpness"`
}

// MeasureQuality computes brightness and sharpness on the grayscale image.
func MeasureQuality(img image.Image) Quality {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return Quality{}
	}

	// imaging returns NRGBA with equal channels; read R as the gray level.
	level := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x*4])
	}

	levels := make([]float64, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			levels = append(levels, level(x, y))
		}
	}

	var laplacian []float64
	if w > 2 && h > 2 {
		laplacian = make([]float64, 0, (w-2)*(h-2))
		for y := 1; y < h-1; y++ {
			for x := 1; x < w-1; x++ {
				v := -4*level(x, y) + level(x, y-1) + level(x, y+1) + level(x-1, y) + level(x+1, y)
				laplacian = append(laplacian, v)
			}
		}
	}

	q := Quality{Brightness: stat.Mean(levels, nil)}
	if len(laplacian) > 1 {
		q.Sharpness = stat.Variance(laplacian, nil)
	}
	return q
}
