package improc

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"testing"
)

func TestContourCircularity(t *testing.T) {
	// A circle of radius 10: area = pi*r^2, perimeter = 2*pi*r.
	r := 10.0
	circle := Contour{Area: math.Pi * r * r, Perimeter: 2 * math.Pi * r}
	if got := circle.Circularity(); math.Abs(got-1.0) > 1e-6 {
		t.Fatalf("circle circularity = %f, want 1.0", got)
	}

	// A degenerate sliver has near-zero circularity.
	sliver := Contour{Area: 1, Perimeter: 1000}
	if got := sliver.Circularity(); got > 0.01 {
		t.Fatalf("sliver circularity = %f, want near 0", got)
	}
}

func TestNopToolkitPassthrough(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	tk := Nop{}

	out, err := tk.Grayscale(img)
	if err != nil || out != image.Image(img) {
		t.Fatalf("Grayscale = (%v, %v), want input unchanged", out, err)
	}
	edges, err := tk.CannyEdges(img, 50, 150)
	if err != nil {
		t.Fatalf("CannyEdges error = %v", err)
	}
	if edges.Bounds() != img.Bounds() {
		t.Fatalf("edge map bounds = %v, want %v", edges.Bounds(), img.Bounds())
	}
	v, err := tk.LaplacianVariance(img)
	if err != nil || v != 0 {
		t.Fatalf("LaplacianVariance = (%f, %v), want (0, nil)", v, err)
	}
}

func TestEncodePNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 3))
	data, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG error = %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("round trip decode error = %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Fatalf("bounds = %v, want %v", decoded.Bounds(), img.Bounds())
	}
}
