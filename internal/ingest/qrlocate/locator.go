// Package qrlocate finds the QR code on a rendered ticket page and produces
// a cropped, normalized image of just the code.
package qrlocate

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	xdraw "golang.org/x/image/draw"
)

// ErrQRNotFound means no QR code was detected anywhere on the page. It is a
// legitimate terminal outcome for a page, not a defect.
var ErrQRNotFound = errors.New("qr code not found")

// Region is a candidate sub-rectangle of the page, expressed as fractions of
// the image dimensions so it applies at any render scale.
type Region struct {
	Name           string
	X0, Y0, X1, Y1 float64
}

// DefaultRegions encodes where tickets tend to place their QR code: near a
// top corner or centered. The list is configuration; extend it without
// touching the search loop.
var DefaultRegions = []Region{
	{Name: "top-left", X0: 0, Y0: 0, X1: 0.5, Y1: 0.5},
	{Name: "top-right", X0: 0.5, Y0: 0, X1: 1, Y1: 0.5},
	{Name: "center", X0: 0.25, Y0: 0.25, X1: 0.75, Y1: 0.75},
}

// ScanFunc detects a QR code in an image and returns the detected pattern
// points, or ErrQRNotFound.
type ScanFunc func(img image.Image) ([]image.Point, error)

// Locator crops and normalizes the QR code region of a page image. The zero
// value is not usable; call NewLocator.
type Locator struct {
	// Padding in pixels added around the detected code on a whole-image hit.
	Padding int
	// OutputSize is the side length of the normalized square output.
	OutputSize int
	// Regions searched, in order, when the whole-image scan finds nothing.
	// First match wins.
	Regions []Region
	// Scan is the detection primitive. Defaults to a gozxing QR reader.
	Scan ScanFunc
}

func NewLocator() *Locator {
	return &Locator{
		Padding:    50,
		OutputSize: 500,
		Regions:    DefaultRegions,
		Scan:       scanQR,
	}
}

// Locate finds the QR code in the page image and returns a normalized
// OutputSize x OutputSize crop of it. It first scans the whole image; if
// that finds nothing it scans each configured region in turn. Returns
// ErrQRNotFound when no region yields a code. Never retries within a page.
func (l *Locator) Locate(img image.Image) (image.Image, error) {
	bounds := img.Bounds()

	points, err := l.Scan(img)
	if err == nil {
		box := boundingBox(points, l.Padding, bounds)
		return l.normalize(crop(img, box)), nil
	}
	if !errors.Is(err, ErrQRNotFound) {
		return nil, err
	}

	// Region fallback: a full-page scan can miss a code sitting in a large,
	// noisy or low-contrast page; the fixed sub-rectangles are generous
	// enough that a region hit is cropped without extra padding.
	width := bounds.Dx()
	height := bounds.Dy()
	for _, region := range l.Regions {
		rect := image.Rect(
			bounds.Min.X+int(region.X0*float64(width)),
			bounds.Min.Y+int(region.Y0*float64(height)),
			bounds.Min.X+int(region.X1*float64(width)),
			bounds.Min.Y+int(region.Y1*float64(height)),
		)
		cropped := crop(img, rect)
		if _, err := l.Scan(cropped); err == nil {
			return l.normalize(cropped), nil
		} else if !errors.Is(err, ErrQRNotFound) {
			return nil, err
		}
	}

	return nil, ErrQRNotFound
}

// scanQR runs a gozxing QR decode over the raw pixels and maps the finder
// pattern positions back to image points.
func scanQR(img image.Image) ([]image.Point, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, err
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		// gozxing reports every detection miss as an exception type; for
		// locating purposes they all mean "no code here".
		return nil, ErrQRNotFound
	}

	resultPoints := result.GetResultPoints()
	if len(resultPoints) == 0 {
		return nil, ErrQRNotFound
	}
	points := make([]image.Point, 0, len(resultPoints))
	for _, p := range resultPoints {
		points = append(points, image.Pt(int(math.Round(p.GetX())), int(math.Round(p.GetY()))))
	}
	return points, nil
}

// boundingBox spans the detected pattern points, expanded by padding and
// clamped to the image bounds.
func boundingBox(points []image.Point, padding int, bounds image.Rectangle) image.Rectangle {
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	box := image.Rect(minX-padding, minY-padding, maxX+padding, maxY+padding)
	return box.Intersect(bounds)
}

func crop(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

// normalize scales the crop into a fixed square with uniform (contain)
// scaling, padding the remainder with white. Downstream consumers assume the
// fixed aspect and size.
func (l *Locator) normalize(img image.Image) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, l.OutputSize, l.OutputSize))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	src := img.Bounds()
	if src.Dx() == 0 || src.Dy() == 0 {
		return out
	}

	scale := math.Min(
		float64(l.OutputSize)/float64(src.Dx()),
		float64(l.OutputSize)/float64(src.Dy()),
	)
	w := int(math.Round(float64(src.Dx()) * scale))
	h := int(math.Round(float64(src.Dy()) * scale))
	x0 := (l.OutputSize - w) / 2
	y0 := (l.OutputSize - h) / 2

	xdraw.CatmullRom.Scale(out, image.Rect(x0, y0, x0+w, y0+h), img, src, xdraw.Over, nil)
	return out
}
