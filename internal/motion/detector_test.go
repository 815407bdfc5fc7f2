package motion

import (
	"image"
	"image/color"
	"testing"
)

func grayFrame(w, h int, value uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

func withBlock(base *image.Gray, x0, y0, x1, y1 int, value uint8) *image.Gray {
	img := image.NewGray(base.Bounds())
	copy(img.Pix, base.Pix)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}
	return img
}

func TestFirstFrameSeedsBackground(t *testing.T) {
	d := NewDetector(25, 500)

	if d.Detect(grayFrame(320, 240, 200)) {
		t.Fatal("first frame must never report motion")
	}
}

func TestStaticSceneNoMotion(t *testing.T) {
	d := NewDetector(25, 500)
	frame := grayFrame(320, 240, 128)

	d.Detect(frame)
	for i := 0; i < 5; i++ {
		if d.Detect(frame) {
			t.Fatalf("static scene reported motion on frame %d", i+2)
		}
	}
}

func TestLargeChangeTriggersMotion(t *testing.T) {
	d := NewDetector(25, 500)
	base := grayFrame(320, 240, 30)

	d.Detect(base)
	moved := withBlock(base, 50, 50, 150, 150, 230)

	if !d.Detect(moved) {
		t.Fatal("100x100 bright block did not trigger motion")
	}
}

func TestSmallChangeBelowMinArea(t *testing.T) {
	d := NewDetector(25, 500)
	base := grayFrame(320, 240, 30)

	d.Detect(base)
	moved := withBlock(base, 50, 50, 60, 60, 230)

	if d.Detect(moved) {
		t.Fatal("10x10 blob below min_contour_area triggered motion")
	}
}

func TestGradualChangeBelowThreshold(t *testing.T) {
	d := NewDetector(25, 500)

	d.Detect(grayFrame(320, 240, 100))
	// A global shift well under the luma threshold, like slow light change
	if d.Detect(grayFrame(320, 240, 110)) {
		t.Fatal("sub-threshold luma shift triggered motion")
	}
}

func TestResolutionChangeReseeds(t *testing.T) {
	d := NewDetector(25, 500)

	d.Detect(grayFrame(320, 240, 30))
	// Different dimensions invalidate the background model, so even a
	// wildly different frame only reseeds.
	if d.Detect(grayFrame(640, 480, 230)) {
		t.Fatal("resolution change reported motion instead of reseeding")
	}
}

func TestResetDiscardsBackground(t *testing.T) {
	d := NewDetector(25, 500)
	base := grayFrame(320, 240, 30)

	d.Detect(base)
	d.Reset()

	bright := grayFrame(320, 240, 230)
	if d.Detect(bright) {
		t.Fatal("frame after Reset must reseed, not report motion")
	}
	if !d.Detect(withBlock(bright, 50, 50, 150, 150, 30)) {
		t.Fatal("motion not detected after reseed")
	}
}
