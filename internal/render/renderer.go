// Package render produces page thumbnails with go-fitz (MuPDF).
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfassembly/internal/session"
)

// DefaultThumbDPI renders at half of the 72 DPI native page space.
const DefaultThumbDPI = 36

// Options defines renderer parameters.
type Options struct {
	ThumbDPI    float64
	JPEGQuality int
}

// Renderer opens PDF byte buffers for thumbnail rasterization.
type Renderer struct {
	dpi     float64
	quality int
}

func New(opts Options) *Renderer {
	if opts.ThumbDPI <= 0 {
		opts.ThumbDPI = DefaultThumbDPI
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 80
	}
	return &Renderer{dpi: opts.ThumbDPI, quality: opts.JPEGQuality}
}

// Open parses the buffer into a renderer-side document. The caller must
// Close it to release MuPDF resources.
func (r *Renderer) Open(data []byte) (session.RenderDoc, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for rendering: %w", err)
	}
	return &renderDoc{doc: doc, dpi: r.dpi, quality: r.quality}, nil
}

type renderDoc struct {
	doc     *fitz.Document
	dpi     float64
	quality int
}

func (d *renderDoc) PageCount() int { return d.doc.NumPage() }

// Thumbnail rasterizes the page (zero-based) and returns it as a JPEG data
// URL for direct display.
func (d *renderDoc) Thumbnail(pageIndex int) (string, error) {
	img, err := d.doc.ImageDPI(pageIndex, d.dpi)
	if err != nil {
		return "", fmt.Errorf("failed to render page %d: %w", pageIndex+1, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.quality}); err != nil {
		return "", fmt.Errorf("failed to encode JPEG: %w", err)
	}

	bounds := img.Bounds()
	log.Debug().
		Int("page", pageIndex+1).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int("jpeg_size", buf.Len()).
		Msg("rendered page thumbnail")

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (d *renderDoc) Close() error { return d.doc.Close() }
