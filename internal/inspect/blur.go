package inspect

import (
	"image"
	"image/color"
	"log/slog"
	"math"
)

// BlurAcceptable is returned when the blur check is disabled or cannot be computed.
var BlurAcceptable = math.Inf(1)

// BlurScore returns the variance of the Laplacian of the luma plane, higher is sharper.
// Decode failures are logged and reported as acceptable.
func (i *Inspector) BlurScore(path string) float64 {
	if i.cfg.BlurThreshold <= 0 {
		return BlurAcceptable
	}

	img, err := decodeFile(path)
	if err != nil {
		slog.Warn("Blur check skipped", "path", path, "error", err)
		return BlurAcceptable
	}
	return LaplacianVariance(img)
}

func LaplacianVariance(img image.Image) float64 {
	w, h, luma := lumaPlane(img)
	if w < 3 || h < 3 {
		return 0
	}

	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		row := y * w
		for x := 1; x < w-1; x++ {
			c := row + x
			lap := luma[c-1] + luma[c+1] + luma[c-w] + luma[c+w] - 4*luma[c]
			sum += lap
			sumSq += lap * lap
			n++
		}
	}

	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

func lumaPlane(img image.Image) (int, int, []float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	luma := make([]float64, w*h)

	switch src := img.(type) {
	case *image.YCbCr:
		for y := 0; y < h; y++ {
			off := y * src.YStride
			for x := 0; x < w; x++ {
				luma[y*w+x] = float64(src.Y[off+x])
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			off := y * src.Stride
			for x := 0; x < w; x++ {
				luma[y*w+x] = float64(src.Pix[off+x])
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				luma[y*w+x] = float64(g.Y)
			}
		}
	}
	return w, h, luma
}
