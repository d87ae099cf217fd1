package inference

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Crop returns the part of img inside r, clipped to its bounds.
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}

	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// resize scales img to w*h with bilinear interpolation.
func resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// PackCHW resizes img to w*h and lays it out as planar RGB, each value mapped
// through (v - mean) * scale.
func PackCHW(img image.Image, w, h int, mean, scale float32) []float32 {
	dst := resize(img, w, h)
	plane := w * h
	out := make([]float32, 3*plane)
	for y := range h {
		for x := range w {
			p := dst.Pix[dst.PixOffset(x, y):]
			i := y*w + x
			out[i] = (float32(p[0]) - mean) * scale
			out[plane+i] = (float32(p[1]) - mean) * scale
			out[2*plane+i] = (float32(p[2]) - mean) * scale
		}
	}
	return out
}

// PackGray resizes img to w*h as a single luma plane, each value mapped
// through (v - mean) * scale.
func PackGray(img image.Image, w, h int, mean, scale float32) []float32 {
	dst := resize(img, w, h)
	out := make([]float32, w*h)
	for y := range h {
		for x := range w {
			p := dst.Pix[dst.PixOffset(x, y):]
			luma := 0.299*float32(p[0]) + 0.587*float32(p[1]) + 0.114*float32(p[2])
			out[y*w+x] = (luma - mean) * scale
		}
	}
	return out
}

// Softmax converts logits into probabilities.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}

	peak := float64(logits[0])
	for _, v := range logits[1:] {
		peak = math.Max(peak, float64(v))
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
