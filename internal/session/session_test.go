package session

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"testing"
)

type fakeDoc struct {
	id     string
	pages  int
	closed bool
}

func (d *fakeDoc) PageCount() int { return d.pages }
func (d *fakeDoc) Close() error   { d.closed = true; return nil }

type appended struct {
	doc       *fakeDoc
	pageIndex int
	rotation  int
}

type fakeAssembly struct {
	appended []appended
	saveErr  error
	profile  CompressionProfile
}

func (a *fakeAssembly) AppendPage(src Document, pageIndex, rotation int) error {
	a.appended = append(a.appended, appended{src.(*fakeDoc), pageIndex, rotation})
	return nil
}

func (a *fakeAssembly) Save(profile CompressionProfile) ([]byte, error) {
	if a.saveErr != nil {
		return nil, a.saveErr
	}
	a.profile = profile
	return []byte("%PDF-fake"), nil
}

// fakeEngine hands out documents with page counts taken from a queue, one per
// Load call, and remembers every handle it produced.
type fakeEngine struct {
	counts  []int
	loaded  []*fakeDoc
	failOn  int // 1-based Load call that fails, 0 for never
	asm     *fakeAssembly
	blockCh chan struct{} // when set, Load waits until closed
	enterCh chan struct{} // signalled when a blocking Load is entered
}

func (e *fakeEngine) Load(data []byte) (Document, error) {
	if e.blockCh != nil {
		e.enterCh <- struct{}{}
		<-e.blockCh
	}
	call := len(e.loaded) + 1
	if e.failOn == call {
		return nil, errors.New("corrupt document")
	}
	n := 1
	if len(e.counts) > 0 {
		n = e.counts[0]
		e.counts = e.counts[1:]
	}
	doc := &fakeDoc{id: fmt.Sprintf("doc-%d", call), pages: n}
	e.loaded = append(e.loaded, doc)
	return doc, nil
}

func (e *fakeEngine) NewAssembly() Assembly {
	e.asm = &fakeAssembly{}
	return e.asm
}

type fakeRenderDoc struct {
	pages  int
	closed bool
}

func (d *fakeRenderDoc) PageCount() int { return d.pages }
func (d *fakeRenderDoc) Thumbnail(pageIndex int) (string, error) {
	return fmt.Sprintf("data:image/jpeg;base64,thumb-%d", pageIndex), nil
}
func (d *fakeRenderDoc) Close() error { d.closed = true; return nil }

type fakeRenderer struct {
	counts []int
	opened []*fakeRenderDoc
}

func (r *fakeRenderer) Open(data []byte) (RenderDoc, error) {
	n := 1
	if len(r.counts) > 0 {
		n = r.counts[0]
		r.counts = r.counts[1:]
	}
	doc := &fakeRenderDoc{pages: n}
	r.opened = append(r.opened, doc)
	return doc, nil
}

type statusRecorder struct {
	msgs []string
}

func (s *statusRecorder) Publish(msg string) { s.msgs = append(s.msgs, msg) }

func newTestSession(counts ...int) (*Session, *fakeEngine, *fakeRenderer, *statusRecorder) {
	eng := &fakeEngine{counts: append([]int{}, counts...)}
	rnd := &fakeRenderer{counts: append([]int{}, counts...)}
	st := &statusRecorder{}
	return New(Dependencies{Engine: eng, Renderer: rnd, Status: st}), eng, rnd, st
}

func smallJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestIngestSinglePDF(t *testing.T) {
	s, _, _, _ := newTestSession(3)

	if err := s.Ingest([]File{{Name: "report.pdf", Data: []byte("%PDF")}}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	pages := s.Pages()
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}

	seen := map[string]bool{}
	for i, p := range pages {
		if seen[p.ID] {
			t.Errorf("duplicate page id %q", p.ID)
		}
		seen[p.ID] = true
		if p.OriginalPageIndex != i {
			t.Errorf("page %d: originalPageIndex = %d, want %d", i, p.OriginalPageIndex, i)
		}
		if p.PageNumberInSource != i+1 {
			t.Errorf("page %d: pageNumberInSource = %d, want %d", i, p.PageNumberInSource, i+1)
		}
		if p.Rotation != 0 {
			t.Errorf("page %d: rotation = %d, want 0", i, p.Rotation)
		}
		if p.SourceLabel != "report.pdf" {
			t.Errorf("page %d: sourceLabel = %q", i, p.SourceLabel)
		}
		if p.ThumbnailURL == "" {
			t.Errorf("page %d: empty thumbnail", i)
		}
		if p.SourceDocumentID != pages[0].SourceDocumentID {
			t.Errorf("page %d: sourceDocumentID differs within one file", i)
		}
	}
}

func TestIngestThenAddImage(t *testing.T) {
	s, _, _, _ := newTestSession(2, 1)

	if err := s.Ingest([]File{{Name: "a.pdf", Data: []byte("%PDF")}}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := s.AddImage(smallJPEG(t)); err != nil {
		t.Fatalf("AddImage: %v", err)
	}

	pages := s.Pages()
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}

	img := pages[2]
	if img.OriginalPageIndex != 0 {
		t.Errorf("image page originalPageIndex = %d, want 0", img.OriginalPageIndex)
	}
	if img.PageNumberInSource != 1 {
		t.Errorf("image page pageNumberInSource = %d, want 1", img.PageNumberInSource)
	}
	if !strings.HasPrefix(img.SourceLabel, "image-") || !strings.HasSuffix(img.SourceLabel, ".pdf") {
		t.Errorf("image page sourceLabel = %q, want image-*.pdf", img.SourceLabel)
	}
	if img.SourceDocumentID == pages[0].SourceDocumentID {
		t.Error("image page shares sourceDocumentID with the PDF")
	}
}

func TestRotateFourTimesIsIdentity(t *testing.T) {
	s, _, _, _ := newTestSession(1)
	if err := s.Ingest([]File{{Name: "a.pdf", Data: []byte("%PDF")}}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	id := s.Pages()[0].ID

	for i := 0; i < 4; i++ {
		s.RotatePage(id, RotateRight)
	}
	if got := s.Pages()[0].Rotation; got != 0 {
		t.Errorf("rotation after four rights = %d, want 0", got)
	}
}

func TestSaveAfterDeletingWholeDocument(t *testing.T) {
	s, eng, _, _ := newTestSession(3, 2)
	files := []File{
		{Name: "a.pdf", Data: []byte("%PDF-a")},
		{Name: "b.pdf", Data: []byte("%PDF-b")},
	}
	if err := s.Ingest(files); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// Remove every page that came from a.pdf.
	for _, p := range s.Pages() {
		if p.SourceLabel == "a.pdf" {
			s.DeletePage(p.ID)
		}
	}
	if got := len(s.Pages()); got != 2 {
		t.Fatalf("got %d pages after delete, want 2", got)
	}

	res, err := s.Save(CompressionHigh)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(res.Bytes) == 0 {
		t.Error("empty output")
	}
	if !strings.HasPrefix(res.SuggestedFilename, "merged-") || !strings.HasSuffix(res.SuggestedFilename, ".pdf") {
		t.Errorf("SuggestedFilename = %q, want merged-*.pdf", res.SuggestedFilename)
	}

	asm := eng.asm
	if len(asm.appended) != 2 {
		t.Fatalf("appended %d pages, want 2", len(asm.appended))
	}
	bDoc := eng.loaded[1]
	for i, ap := range asm.appended {
		if ap.doc != bDoc {
			t.Errorf("appended page %d came from the wrong document", i)
		}
		if ap.pageIndex != i {
			t.Errorf("appended page %d: pageIndex = %d, want %d", i, ap.pageIndex, i)
		}
	}
	if asm.profile != CompressionHigh {
		t.Errorf("profile = %q, want %q", asm.profile, CompressionHigh)
	}
}

func TestSaveAppliesRotationAndOrder(t *testing.T) {
	s, eng, _, _ := newTestSession(3)
	if err := s.Ingest([]File{{Name: "a.pdf", Data: []byte("%PDF")}}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	pages := s.Pages()
	s.RotatePage(pages[1].ID, RotateLeft)
	if !s.Reorder(2, 0) {
		t.Fatal("Reorder(2, 0) rejected")
	}
	// Ledger order is now: page 3, page 1, page 2(rotated 270).

	if _, err := s.Save(CompressionLow); err != nil {
		t.Fatalf("Save: %v", err)
	}

	want := []appended{
		{eng.loaded[0], 2, 0},
		{eng.loaded[0], 0, 0},
		{eng.loaded[0], 1, 270},
	}
	got := eng.asm.appended
	if len(got) != len(want) {
		t.Fatalf("appended %d pages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("appended[%d] = {%d %d}, want {%d %d}",
				i, got[i].pageIndex, got[i].rotation, want[i].pageIndex, want[i].rotation)
		}
	}
}

func TestSaveEmptyLedger(t *testing.T) {
	s, _, _, _ := newTestSession()
	if _, err := s.Save(CompressionHigh); !errors.Is(err, ErrNoPagesToSave) {
		t.Errorf("Save on empty session = %v, want ErrNoPagesToSave", err)
	}
}

func TestReorderBounds(t *testing.T) {
	s, _, _, _ := newTestSession(2)
	if err := s.Ingest([]File{{Name: "a.pdf", Data: []byte("%PDF")}}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	tests := []struct {
		name     string
		from, to int
		want     bool
	}{
		{"valid", 0, 1, true},
		{"from negative", -1, 0, false},
		{"from past end", 2, 0, false},
		{"to past end", 0, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Reorder(tt.from, tt.to); got != tt.want {
				t.Errorf("Reorder(%d, %d) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIngestFailureKeepsCommittedFiles(t *testing.T) {
	eng := &fakeEngine{counts: []int{2}, failOn: 2}
	rnd := &fakeRenderer{counts: []int{2}}
	s := New(Dependencies{Engine: eng, Renderer: rnd})

	files := []File{
		{Name: "good.pdf", Data: []byte("%PDF")},
		{Name: "bad.pdf", Data: []byte("garbage")},
	}
	err := s.Ingest(files)
	if err == nil {
		t.Fatal("Ingest succeeded, want error")
	}

	var ierr *IngestionError
	if !errors.As(err, &ierr) {
		t.Fatalf("error type %T, want *IngestionError", err)
	}
	if ierr.File != "bad.pdf" {
		t.Errorf("IngestionError.File = %q, want bad.pdf", ierr.File)
	}

	// The first file's pages stay committed.
	pages := s.Pages()
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	for _, p := range pages {
		if p.SourceLabel != "good.pdf" {
			t.Errorf("unexpected surviving page from %q", p.SourceLabel)
		}
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	s, _, rnd, _ := newTestSession(0)
	err := s.Ingest([]File{{Name: "empty.pdf", Data: []byte("%PDF")}})
	if err == nil {
		t.Fatal("Ingest of zero-page document succeeded")
	}
	if got := len(s.Pages()); got != 0 {
		t.Errorf("got %d pages, want 0", got)
	}
	if len(rnd.opened) != 1 || !rnd.opened[0].closed {
		t.Error("renderer document not closed on failure")
	}
}

func TestBusyGuard(t *testing.T) {
	eng := &fakeEngine{
		counts:  []int{1},
		blockCh: make(chan struct{}),
		enterCh: make(chan struct{}, 1),
	}
	rnd := &fakeRenderer{counts: []int{1}}
	s := New(Dependencies{Engine: eng, Renderer: rnd})

	done := make(chan error, 1)
	go func() {
		done <- s.Ingest([]File{{Name: "slow.pdf", Data: []byte("%PDF")}})
	}()
	<-eng.enterCh

	if err := s.Ingest([]File{{Name: "second.pdf", Data: nil}}); !IsBusy(err) {
		t.Errorf("concurrent Ingest = %v, want ErrBusy", err)
	}
	if _, err := s.Save(CompressionHigh); !IsBusy(err) {
		t.Errorf("concurrent Save = %v, want ErrBusy", err)
	}
	if err := s.AddImage(nil); !IsBusy(err) {
		t.Errorf("concurrent AddImage = %v, want ErrBusy", err)
	}

	// Edit operations stay available while an ingest runs.
	s.DeletePage("nope")

	close(eng.blockCh)
	if err := <-done; err != nil {
		t.Fatalf("blocked Ingest: %v", err)
	}
	if got := len(s.Pages()); got != 1 {
		t.Errorf("got %d pages after unblock, want 1", got)
	}
}

func TestResetClearsEverything(t *testing.T) {
	s, eng, _, _ := newTestSession(2, 1)
	if err := s.Ingest([]File{{Name: "a.pdf", Data: []byte("%PDF")}}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	s.Reset()

	if got := len(s.Pages()); got != 0 {
		t.Errorf("got %d pages after reset, want 0", got)
	}
	if s.Status() != "" {
		t.Errorf("status after reset = %q, want empty", s.Status())
	}
	if !eng.loaded[0].closed {
		t.Error("document handle not closed on reset")
	}
	if got := s.store.len(); got != 0 {
		t.Errorf("store holds %d documents after reset, want 0", got)
	}

	// A reset session accepts fresh work.
	if err := s.Ingest([]File{{Name: "b.pdf", Data: []byte("%PDF")}}); err != nil {
		t.Fatalf("Ingest after reset: %v", err)
	}
	if got := len(s.Pages()); got != 1 {
		t.Errorf("got %d pages after re-ingest, want 1", got)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	s, _, _, _ := newTestSession()
	s.Reset()
	s.Reset()
	if got := len(s.Pages()); got != 0 {
		t.Errorf("got %d pages, want 0", got)
	}
}

func TestProgressMessages(t *testing.T) {
	s, _, _, st := newTestSession(2)
	if err := s.Ingest([]File{{Name: "a.pdf", Data: []byte("%PDF")}}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	want := []string{
		"processing a.pdf",
		"rendering page 1 of 2 in a.pdf",
		"rendering page 2 of 2 in a.pdf",
		"", // cleared when the operation finishes
	}
	if len(st.msgs) != len(want) {
		t.Fatalf("got %d messages %v, want %d", len(st.msgs), st.msgs, len(want))
	}
	for i := range want {
		if st.msgs[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, st.msgs[i], want[i])
		}
	}
	if s.Status() != "" {
		t.Errorf("status after ingest = %q, want empty", s.Status())
	}
}
