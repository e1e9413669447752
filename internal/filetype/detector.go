package filetype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind classifies an upload for the ingestion pipeline.
type Kind int

const (
	// KindPDF is ingested directly.
	KindPDF Kind = iota
	// KindImage is routed through the image-to-PDF adapter first.
	KindImage
	// KindUnsupported is rejected.
	KindUnsupported
)

// Info contains detected file type information.
type Info struct {
	MIMEType    string
	Extension   string
	Kind        Kind
	Description string
}

// Detector classifies uploads using magic bytes, not filenames.
type Detector struct{}

// New creates a new file type detector.
func New() *Detector {
	return &Detector{}
}

// Detect inspects the buffer's magic bytes and classifies it.
func (d *Detector) Detect(data []byte) *Info {
	mtype := mimetype.Detect(data)

	info := &Info{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	d.classify(info)

	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Msg("detected file type")
	return info
}

// classify determines how the ingestion pipeline should treat the file.
func (d *Detector) classify(info *Info) {
	switch {
	case info.MIMEType == "application/pdf":
		info.Kind = KindPDF
		info.Description = "PDF document"

	case info.MIMEType == "image/jpeg":
		info.Kind = KindImage
		info.Description = "JPEG image"

	case info.MIMEType == "image/png":
		info.Kind = KindImage
		info.Description = "PNG image"

	// Other raster formats are recognizable but outside the supported set.
	case strings.HasPrefix(info.MIMEType, "image/"):
		info.Kind = KindUnsupported
		info.Description = fmt.Sprintf("Unsupported image format: %s", info.MIMEType)

	default:
		info.Kind = KindUnsupported
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}
}
