package classifier

import (
	"image"
)

// Model input geometry: shortest side scaled to 256, then a centered
// 224x224 crop, matching the preprocessing the model was trained with.
const (
	resizeShortest = 256
	inputSize      = 224
)

// ImageNet channel statistics used for input normalization.
var (
	normMean = [3]float32{0.485, 0.456, 0.406}
	normStd  = [3]float32{0.229, 0.224, 0.225}
)

// preprocess converts an image into the normalized float32 HWC tensor the
// model expects.
func preprocess(img image.Image) []float32 {
	scaled := resizeBilinear(img, resizeShortest)
	cropped := centerCrop(scaled, inputSize)

	data := make([]float32, inputSize*inputSize*3)
	i := 0
	for y := range inputSize {
		for x := range inputSize {
			r, g, b, _ := cropped.At(cropped.Bounds().Min.X+x, cropped.Bounds().Min.Y+y).RGBA()
			// RGBA returns 16-bit channels
			data[i] = (float32(r)/65535.0 - normMean[0]) / normStd[0]
			data[i+1] = (float32(g)/65535.0 - normMean[1]) / normStd[1]
			data[i+2] = (float32(b)/65535.0 - normMean[2]) / normStd[2]
			i += 3
		}
	}
	return data
}

// resizeBilinear scales the image so its shortest side equals shortest,
// preserving aspect ratio.
func resizeBilinear(img image.Image, shortest int) *image.RGBA {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	var dstW, dstH int
	if srcW < srcH {
		dstW = shortest
		dstH = srcH * shortest / srcW
	} else {
		dstH = shortest
		dstW = srcW * shortest / srcH
	}
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xRatio := float64(srcW) / float64(dstW)
	yRatio := float64(srcH) / float64(dstH)

	for y := range dstH {
		srcY := (float64(y) + 0.5) * yRatio
		y0 := int(srcY - 0.5)
		if y0 < 0 {
			y0 = 0
		}
		y1 := y0 + 1
		if y1 >= srcH {
			y1 = srcH - 1
		}
		fy := srcY - 0.5 - float64(y0)
		if fy < 0 {
			fy = 0
		}

		for x := range dstW {
			srcX := (float64(x) + 0.5) * xRatio
			x0 := int(srcX - 0.5)
			if x0 < 0 {
				x0 = 0
			}
			x1 := x0 + 1
			if x1 >= srcW {
				x1 = srcW - 1
			}
			fx := srcX - 0.5 - float64(x0)
			if fx < 0 {
				fx = 0
			}

			r00, g00, b00, _ := img.At(bounds.Min.X+x0, bounds.Min.Y+y0).RGBA()
			r10, g10, b10, _ := img.At(bounds.Min.X+x1, bounds.Min.Y+y0).RGBA()
			r01, g01, b01, _ := img.At(bounds.Min.X+x0, bounds.Min.Y+y1).RGBA()
			r11, g11, b11, _ := img.At(bounds.Min.X+x1, bounds.Min.Y+y1).RGBA()

			lerp := func(c00, c10, c01, c11 uint32) uint8 {
				top := float64(c00)*(1-fx) + float64(c10)*fx
				bottom := float64(c01)*(1-fx) + float64(c11)*fx
				return uint8((top*(1-fy) + bottom*fy) / 257.0)
			}

			idx := dst.PixOffset(x, y)
			dst.Pix[idx] = lerp(r00, r10, r01, r11)
			dst.Pix[idx+1] = lerp(g00, g10, g01, g11)
			dst.Pix[idx+2] = lerp(b00, b10, b01, b11)
			dst.Pix[idx+3] = 0xff
		}
	}
	return dst
}

// centerCrop returns the centered size x size sub-image. Images smaller
// than the crop are padded by clamping at the border.
func centerCrop(img *image.RGBA, size int) *image.RGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	x0 := (w - size) / 2
	y0 := (h - size) / 2

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			srcX := x0 + x
			srcY := y0 + y
			if srcX < 0 {
				srcX = 0
			} else if srcX >= w {
				srcX = w - 1
			}
			if srcY < 0 {
				srcY = 0
			} else if srcY >= h {
				srcY = h - 1
			}
			dst.Set(x, y, img.At(bounds.Min.X+srcX, bounds.Min.Y+srcY))
		}
	}
	return dst
}
