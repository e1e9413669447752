// Package engine implements the PDF document engine on top of pdfcpu:
// loading source documents into retained in-memory contexts, copying single
// pages out of them, and serializing the assembled output.
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/local/pdfassembly/internal/session"
)

// Engine loads and assembles PDF documents with pdfcpu.
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Load parses the given bytes into a retained document handle.
func (e *Engine) Load(data []byte) (session.Document, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdf read failed: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("pdf validation failed: %w", err)
	}
	if err := api.OptimizeContext(ctx); err != nil {
		return nil, fmt.Errorf("pdf optimization failed: %w", err)
	}
	return &Document{ctx: ctx}, nil
}

// NewAssembly starts an empty output document.
func (e *Engine) NewAssembly() session.Assembly {
	return &Assembly{}
}

// Document wraps a parsed pdfcpu context.
type Document struct {
	ctx *model.Context
}

func (d *Document) PageCount() int { return d.ctx.PageCount }

// Close drops the context reference. pdfcpu contexts hold no OS resources,
// so this only makes the memory collectible.
func (d *Document) Close() error {
	d.ctx = nil
	return nil
}

// Assembly accumulates copied pages as serialized single-page parts and
// merges them on save.
type Assembly struct {
	parts []*bytes.Buffer
}

// AppendPage copies the page at pageIndex (zero-based) from src into the
// assembly. A non-zero rotation is written as the copied page's absolute
// /Rotate value, overriding whatever the source page carried.
func (a *Assembly) AppendPage(src session.Document, pageIndex, rotation int) error {
	doc, ok := src.(*Document)
	if !ok {
		return fmt.Errorf("foreign document handle %T", src)
	}
	if doc.ctx == nil {
		return errors.New("document handle already released")
	}

	single, err := pdfcpu.ExtractPages(doc.ctx, []int{pageIndex + 1}, false)
	if err != nil {
		return fmt.Errorf("copy page %d: %w", pageIndex, err)
	}
	if rotation != 0 {
		if err := setPageRotation(single, 1, rotation); err != nil {
			return fmt.Errorf("set rotation on page %d: %w", pageIndex, err)
		}
	}

	var buf bytes.Buffer
	if err := api.WriteContext(single, &buf); err != nil {
		return fmt.Errorf("serialize copied page %d: %w", pageIndex, err)
	}
	a.parts = append(a.parts, &buf)
	return nil
}

// Save merges the accumulated parts into one document and serializes it.
// The high profile enables object streams (smaller file, slower save), the
// low profile disables them.
func (a *Assembly) Save(profile session.CompressionProfile) ([]byte, error) {
	if len(a.parts) == 0 {
		return nil, errors.New("nothing to assemble")
	}

	conf := newConfiguration()
	useObjectStreams := profile != session.CompressionLow
	conf.WriteObjectStream = useObjectStreams
	conf.WriteXRefStream = useObjectStreams

	var out bytes.Buffer
	if len(a.parts) == 1 {
		// Nothing to merge; rewrite the single part under the chosen profile.
		ctx, err := api.ReadContext(bytes.NewReader(a.parts[0].Bytes()), conf)
		if err != nil {
			return nil, fmt.Errorf("reread assembled part: %w", err)
		}
		if err := api.ValidateContext(ctx); err != nil {
			return nil, fmt.Errorf("validate assembled part: %w", err)
		}
		if err := api.WriteContext(ctx, &out); err != nil {
			return nil, fmt.Errorf("serialize output: %w", err)
		}
		return out.Bytes(), nil
	}

	readers := make([]io.ReadSeeker, len(a.parts))
	for i, p := range a.parts {
		readers[i] = bytes.NewReader(p.Bytes())
	}
	if err := api.MergeRaw(readers, &out, false, conf); err != nil {
		return nil, fmt.Errorf("merge pages: %w", err)
	}
	return out.Bytes(), nil
}

// setPageRotation writes deg as the absolute /Rotate entry of page pageNr.
func setPageRotation(ctx *model.Context, pageNr, deg int) error {
	indRef, err := ctx.PageDictIndRef(pageNr)
	if err != nil {
		return err
	}
	d, err := ctx.DereferenceDict(*indRef)
	if err != nil {
		return err
	}
	d["Rotate"] = types.Integer(deg)
	return nil
}
