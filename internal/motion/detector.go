// Package motion implements frame-differencing motion detection against a
// running background model.
package motion

import (
	"image"
	"log/slog"
)

const (
	// background learning rate per frame
	learningRate = 0.5
	// pixel sampling stride, trades accuracy for per-frame cost
	sampleStep = 2
	// dilation passes applied to the thresholded mask
	dilateIterations = 2
)

// Detector holds the running background model for a single camera.
// Not safe for concurrent use; the capture loop owns it.
type Detector struct {
	threshold int // per-pixel luma delta that counts as changed
	minArea   int // minimum changed-region area in source pixels

	background []float64
	gridW      int
	gridH      int
	logger     *slog.Logger
}

// NewDetector creates a detector with the configured sensitivity
func NewDetector(threshold, minArea int) *Detector {
	return &Detector{
		threshold: threshold,
		minArea:   minArea,
		logger:    slog.Default().With("component", "motion"),
	}
}

// Detect reports whether the frame contains a changed region at least
// minArea pixels large. The first frame (and the first after a resolution
// change) seeds the background model and never reports motion.
func (d *Detector) Detect(img image.Image) bool {
	bounds := img.Bounds()
	gw := (bounds.Dx() + sampleStep - 1) / sampleStep
	gh := (bounds.Dy() + sampleStep - 1) / sampleStep
	if gw == 0 || gh == 0 {
		return false
	}

	gray := grayGrid(img, gw, gh)

	if d.background == nil || d.gridW != gw || d.gridH != gh {
		d.background = make([]float64, len(gray))
		for i, v := range gray {
			d.background[i] = v
		}
		d.gridW = gw
		d.gridH = gh
		d.logger.Debug("Background model seeded", "width", gw, "height", gh)
		return false
	}

	// Update the running average, then diff against it
	mask := make([]bool, len(gray))
	for i, v := range gray {
		d.background[i] = d.background[i]*(1-learningRate) + v*learningRate
		delta := v - d.background[i]
		if delta < 0 {
			delta = -delta
		}
		if delta >= float64(d.threshold) {
			mask[i] = true
		}
	}

	for i := 0; i < dilateIterations; i++ {
		mask = dilate(mask, gw, gh)
	}

	// Each grid cell stands for sampleStep^2 source pixels
	minCells := d.minArea / (sampleStep * sampleStep)
	if minCells < 1 {
		minCells = 1
	}
	return largestRegion(mask, gw, gh, minCells)
}

// Reset discards the background model
func (d *Detector) Reset() {
	d.background = nil
}

// grayGrid samples the image into a gw x gh luma grid
func grayGrid(img image.Image, gw, gh int) []float64 {
	bounds := img.Bounds()
	out := make([]float64, gw*gh)
	for gy := 0; gy < gh; gy++ {
		y := bounds.Min.Y + gy*sampleStep
		for gx := 0; gx < gw; gx++ {
			x := bounds.Min.X + gx*sampleStep
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma, scaled to 0-255
			out[gy*gw+gx] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
		}
	}
	return out
}

// dilate grows the mask by one cell in each direction
func dilate(mask []bool, w, h int) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask[y*w+x] {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						out[ny*w+nx] = true
					}
				}
			}
		}
	}
	return out
}

// largestRegion reports whether any 4-connected changed region reaches
// minCells. Scanning stops at the first region that clears the bar.
func largestRegion(mask []bool, w, h, minCells int) bool {
	visited := make([]bool, len(mask))
	var stack []int

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}

		area := 0
		stack = stack[:0]
		stack = append(stack, start)
		visited[start] = true

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++
			if area >= minCells {
				return true
			}

			x, y := idx%w, idx/w
			if x > 0 && mask[idx-1] && !visited[idx-1] {
				visited[idx-1] = true
				stack = append(stack, idx-1)
			}
			if x < w-1 && mask[idx+1] && !visited[idx+1] {
				visited[idx+1] = true
				stack = append(stack, idx+1)
			}
			if y > 0 && mask[idx-w] && !visited[idx-w] {
				visited[idx-w] = true
				stack = append(stack, idx-w)
			}
			if y < h-1 && mask[idx+w] && !visited[idx+w] {
				visited[idx+w] = true
				stack = append(stack, idx+w)
			}
		}
	}
	return false
}
