// Package imagepdf wraps a raster image as a single-page A4 PDF so the
// ingestion pipeline can treat camera shots and uploads like any other file.
package imagepdf

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"codeberg.org/go-pdf/fpdf"
	"github.com/gabriel-vasile/mimetype"
)

// A4 portrait in points.
const (
	pageWidthPt  = 595.28
	pageHeightPt = 841.89

	// fitFraction bounds the image to 90% of each page dimension.
	fitFraction = 0.9
)

// UnsupportedFormatError reports an image outside the JPEG/PNG set.
type UnsupportedFormatError struct {
	MIME string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported image format: %s", e.MIME)
}

// Wrap embeds the image centered on a fresh A4 page, scaled uniformly to fit
// a 90% bounding box, and returns the serialized single-page PDF.
func Wrap(data []byte) ([]byte, error) {
	mtype := mimetype.Detect(data)

	var imageType string
	switch mtype.String() {
	case "image/jpeg":
		imageType = "JPEG"
	case "image/png":
		imageType = "PNG"
	default:
		return nil, &UnsupportedFormatError{MIME: mtype.String()}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image dimensions: %w", err)
	}

	w, h := fitOnPage(float64(cfg.Width), float64(cfg.Height))
	x := (pageWidthPt - w) / 2
	y := (pageHeightPt - h) / 2

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	opts := fpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
	pdf.RegisterImageOptionsReader("page-image", opts, bytes.NewReader(data))
	pdf.ImageOptions("page-image", x, y, w, h, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// fitOnPage scales the image uniformly into the bounding box. A relatively
// wider image is constrained by width, a relatively taller one by height.
func fitOnPage(imgW, imgH float64) (w, h float64) {
	maxW := pageWidthPt * fitFraction
	maxH := pageHeightPt * fitFraction

	var scale float64
	if imgW/imgH > pageWidthPt/pageHeightPt {
		scale = maxW / imgW
	} else {
		scale = maxH / imgH
	}
	return imgW * scale, imgH * scale
}
