package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfassembly/internal/imagepdf"
	"github.com/local/pdfassembly/internal/metrics"
)

// Document is a loaded source document handle, retained for page copying at
// save time.
type Document interface {
	PageCount() int
	Close() error
}

// Engine abstracts the PDF document engine: loading source documents and
// assembling an output document from copied pages.
type Engine interface {
	Load(data []byte) (Document, error)
	NewAssembly() Assembly
}

// Assembly is an output document under construction.
type Assembly interface {
	// AppendPage copies the page at pageIndex (zero-based) from src and, when
	// rotation is non-zero, sets it as the copied page's absolute rotation.
	AppendPage(src Document, pageIndex, rotation int) error
	Save(profile CompressionProfile) ([]byte, error)
}

// Renderer abstracts the rasterization engine used for thumbnails.
type Renderer interface {
	Open(data []byte) (RenderDoc, error)
}

// RenderDoc is an open renderer-side document. Close releases renderer
// resources; it does not affect the engine handle for the same bytes.
type RenderDoc interface {
	PageCount() int
	Thumbnail(pageIndex int) (string, error)
	Close() error
}

// StatusSink observes human-readable progress messages. Advisory only.
type StatusSink interface {
	Publish(msg string)
}

// CompressionProfile selects the output serialization tradeoff.
type CompressionProfile string

const (
	// CompressionHigh enables object streams: smaller file, slower save.
	CompressionHigh CompressionProfile = "high"
	// CompressionLow disables object streams: larger file, faster save.
	CompressionLow CompressionProfile = "low"
)

// File is a named input byte buffer handed to Ingest.
type File struct {
	Name string
	Data []byte
}

// SaveResult is the assembled output.
type SaveResult struct {
	Bytes             []byte
	SuggestedFilename string
}

// Dependencies wires a Session's collaborators.
type Dependencies struct {
	Engine   Engine
	Renderer Renderer
	Status   StatusSink // optional
}

// Session owns the source document store and the page ledger for one working
// document. All mutation goes through its methods; edit operations are
// synchronous, ingest/add-image/save are guarded so only one runs at a time.
type Session struct {
	deps Dependencies

	busy chan struct{}

	mu     sync.Mutex
	store  *documentStore
	ledger *Ledger
	status string
}

func New(deps Dependencies) *Session {
	return &Session{
		deps:   deps,
		busy:   make(chan struct{}, 1),
		store:  newDocumentStore(),
		ledger: NewLedger(),
	}
}

// acquire reserves the single in-flight slot for a top-level operation.
func (s *Session) acquire() (func(), bool) {
	select {
	case s.busy <- struct{}{}:
		return func() { <-s.busy }, true
	default:
		return nil, false
	}
}

func (s *Session) publish(msg string) {
	s.mu.Lock()
	s.status = msg
	s.mu.Unlock()
	if s.deps.Status != nil {
		s.deps.Status.Publish(msg)
	}
}

// Status returns the last published progress message, empty when idle.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Pages returns a snapshot of the ledger in document order.
func (s *Session) Pages() []Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Pages()
}

// Ingest loads the given files and appends their pages to the ledger.
// Files are processed strictly one after another; a file's document handle
// and page records are committed together once every page of that file has
// rendered. On failure the batch stops, already committed files remain, and
// the whole call reports a single IngestionError.
func (s *Session) Ingest(files []File) error {
	release, ok := s.acquire()
	if !ok {
		return ErrBusy
	}
	defer release()
	defer s.publish("")

	return s.ingest(files)
}

func (s *Session) ingest(files []File) error {
	for _, f := range files {
		doc, pages, err := s.loadAndRender(f)
		if err != nil {
			log.Error().Err(err).Str("file", f.Name).Msg("ingestion failed")
			metrics.IncIngestFailed()
			return &IngestionError{File: f.Name, Err: err}
		}

		s.mu.Lock()
		s.store.put(pages[0].SourceDocumentID, doc)
		s.ledger.Append(pages...)
		s.mu.Unlock()

		metrics.ObserveIngestedFile(len(pages))
		log.Info().Str("file", f.Name).Int("pages", len(pages)).Msg("file ingested")
	}
	return nil
}

// loadAndRender runs the per-file pipeline: engine load, renderer open,
// per-page thumbnail rendering. Renderer resources are released on every
// exit path; the engine handle is retained for assembly.
func (s *Session) loadAndRender(f File) (Document, []Page, error) {
	s.publish(fmt.Sprintf("processing %s", f.Name))

	docID := mintDocumentID(f.Name)

	doc, err := s.deps.Engine.Load(f.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("load document: %w", err)
	}

	rdoc, err := s.deps.Renderer.Open(f.Data)
	if err != nil {
		_ = doc.Close()
		return nil, nil, fmt.Errorf("open for rendering: %w", err)
	}
	defer rdoc.Close()

	total := rdoc.PageCount()
	if total == 0 {
		_ = doc.Close()
		return nil, nil, fmt.Errorf("document %s has no pages", f.Name)
	}

	pages := make([]Page, 0, total)
	for j := 1; j <= total; j++ {
		s.publish(fmt.Sprintf("rendering page %d of %d in %s", j, total, f.Name))
		thumb, err := rdoc.Thumbnail(j - 1)
		if err != nil {
			_ = doc.Close()
			return nil, nil, fmt.Errorf("render page %d: %w", j, err)
		}
		pages = append(pages, Page{
			ID:                 fmt.Sprintf("%s-page-%d", docID, j),
			SourceDocumentID:   docID,
			OriginalPageIndex:  j - 1,
			Rotation:           0,
			ThumbnailURL:       thumb,
			SourceLabel:        f.Name,
			PageNumberInSource: j,
		})
	}
	return doc, pages, nil
}

// AddImage wraps a raster image as a single-page PDF and ingests it under a
// synthesized filename.
func (s *Session) AddImage(imageData []byte) error {
	release, ok := s.acquire()
	if !ok {
		return ErrBusy
	}
	defer release()
	defer s.publish("")

	s.publish("converting image to PDF page")
	wrapped, err := imagepdf.Wrap(imageData)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("image-%d.pdf", time.Now().UnixMilli())
	return s.ingest([]File{{Name: name, Data: wrapped}})
}

// DeletePage removes the page with the given id; unknown ids are a no-op.
// The source document handle stays in the store either way.
func (s *Session) DeletePage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Delete(id)
}

// Reorder moves the page at from to position to. Out-of-range indices are
// rejected; reports whether the move happened.
func (s *Session) Reorder(from, to int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ledger.Len()
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	s.ledger.Move(from, to)
	return true
}

// RotatePage rotates the page with the given id by 90 degrees.
func (s *Session) RotatePage(id string, dir RotateDirection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Rotate(id, dir)
}

// Save materializes the current ledger into a merged output PDF. The ledger
// is walked in order; each page is copied from its source document and its
// accumulated rotation applied as the output page's absolute rotation.
func (s *Session) Save(profile CompressionProfile) (SaveResult, error) {
	release, ok := s.acquire()
	if !ok {
		return SaveResult{}, ErrBusy
	}
	defer release()
	defer s.publish("")

	s.mu.Lock()
	snapshot := s.ledger.Pages()
	s.mu.Unlock()

	if len(snapshot) == 0 {
		return SaveResult{}, ErrNoPagesToSave
	}

	s.publish("creating the merged PDF")
	start := time.Now()

	asm := s.deps.Engine.NewAssembly()
	for _, p := range snapshot {
		s.mu.Lock()
		doc, ok := s.store.get(p.SourceDocumentID)
		s.mu.Unlock()
		if !ok {
			// Unreachable while the ledger invariant holds.
			log.Warn().Str("page", p.ID).Str("doc", p.SourceDocumentID).Msg("source document missing, skipping page")
			continue
		}
		if err := asm.AppendPage(doc, p.OriginalPageIndex, p.Rotation); err != nil {
			metrics.IncAssembly("error")
			return SaveResult{}, &AssemblyError{Err: err}
		}
	}

	out, err := asm.Save(profile)
	if err != nil {
		metrics.IncAssembly("error")
		return SaveResult{}, &AssemblyError{Err: err}
	}

	metrics.IncAssembly("success")
	metrics.ObserveAssemblyDuration(time.Since(start))
	log.Info().Int("pages", len(snapshot)).Str("profile", string(profile)).Int("bytes", len(out)).Msg("output document assembled")

	return SaveResult{
		Bytes:             out,
		SuggestedFilename: fmt.Sprintf("merged-%d.pdf", time.Now().UnixMilli()),
	}, nil
}

// Reset returns the session to its initial empty state, releasing all
// retained document handles. Idempotent, callable at any time.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Clear()
	s.store.clear()
	s.status = ""
}

// mintDocumentID derives a per-ingestion id from the file name and the
// current time. Collision-tolerant, not content-addressed.
func mintDocumentID(name string) string {
	return fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
}
