package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Preprocess prepares a rendered page for recognition: luminance
// grayscale conversion followed by Otsu binarization. Recognition on the
// binarized plane is markedly more stable on low-contrast scans.
func Preprocess(img image.Image) *image.Gray {
	gray := toGray(imaging.Grayscale(img))
	threshold := OtsuThreshold(gray)
	for i, px := range gray.Pix {
		if px > threshold {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
	return gray
}

// toGray flattens the single-channel NRGBA produced by imaging.Grayscale
// (0.299R+0.587G+0.114B luminance weighting) into a Gray plane.
func toGray(src *image.NRGBA) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := src.PixOffset(x, y)
			dst.SetGray(x, y, color.Gray{Y: src.Pix[i]})
		}
	}
	return dst
}

// OtsuThreshold picks the binarization threshold maximizing inter-class
// variance between foreground and background pixel populations, checked
// over all 256 candidate thresholds.
func OtsuThreshold(img *image.Gray) uint8 {
	var hist [256]int
	for _, px := range img.Pix {
		hist[px]++
	}
	total := len(img.Pix)
	if total == 0 {
		return 128
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var (
		sumB, wB  float64
		bestVar   float64
		threshold uint8
	)
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			threshold = uint8(t)
		}
	}
	return threshold
}
