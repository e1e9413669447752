package session

// Page is a virtual page: one entry in the working document, backed by a page
// of a stored source document plus the edits applied to it so far.
type Page struct {
	ID                 string `json:"id"`
	SourceDocumentID   string `json:"source_document_id"`
	OriginalPageIndex  int    `json:"original_page_index"`
	Rotation           int    `json:"rotation"`
	ThumbnailURL       string `json:"thumbnail_url"`
	SourceLabel        string `json:"source_label"`
	PageNumberInSource int    `json:"page_number_in_source"`
}

// RotateDirection selects which way a page is rotated.
type RotateDirection string

const (
	RotateLeft  RotateDirection = "left"
	RotateRight RotateDirection = "right"
)

// Ledger is the ordered collection of virtual pages. Slice order is document
// order; pos keeps an id -> index lookup so delete/rotate stay O(1) to find.
type Ledger struct {
	pages []Page
	pos   map[string]int
}

func NewLedger() *Ledger {
	return &Ledger{pos: map[string]int{}}
}

func (l *Ledger) Len() int { return len(l.pages) }

// Pages returns a snapshot copy of the ledger in document order.
func (l *Ledger) Pages() []Page {
	out := make([]Page, len(l.pages))
	copy(out, l.pages)
	return out
}

// Append adds pages to the end of the ledger, in the given order.
func (l *Ledger) Append(pages ...Page) {
	for _, p := range pages {
		l.pos[p.ID] = len(l.pages)
		l.pages = append(l.pages, p)
	}
}

// Delete removes the page with the given id. Removing an unknown id is a no-op.
// Reports whether a page was removed.
func (l *Ledger) Delete(id string) bool {
	i, ok := l.pos[id]
	if !ok {
		return false
	}
	l.pages = append(l.pages[:i], l.pages[i+1:]...)
	delete(l.pos, id)
	l.reindex(i)
	return true
}

// Move removes the entry at from and reinserts it at to within the remaining
// sequence. Indices must be valid; callers validate before invoking.
func (l *Ledger) Move(from, to int) {
	p := l.pages[from]
	l.pages = append(l.pages[:from], l.pages[from+1:]...)
	l.pages = append(l.pages[:to], append([]Page{p}, l.pages[to:]...)...)
	lo := from
	if to < lo {
		lo = to
	}
	l.reindex(lo)
}

// Rotate turns the page with the given id by 90 degrees in the given
// direction. Rotations compose additively and stay normalized to [0,360).
// Reports whether the id was found.
func (l *Ledger) Rotate(id string, dir RotateDirection) bool {
	i, ok := l.pos[id]
	if !ok {
		return false
	}
	if dir == RotateRight {
		l.pages[i].Rotation = (l.pages[i].Rotation + 90) % 360
	} else {
		l.pages[i].Rotation = (l.pages[i].Rotation - 90 + 360) % 360
	}
	return true
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	l.pages = nil
	l.pos = map[string]int{}
}

func (l *Ledger) reindex(from int) {
	for i := from; i < len(l.pages); i++ {
		l.pos[l.pages[i].ID] = i
	}
}
