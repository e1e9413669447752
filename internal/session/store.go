package session

// documentStore holds one loaded document handle per ingested source file,
// keyed by document id. Handles stay registered until Clear; there is no
// single-document removal, even when every page referencing a document has
// been deleted from the ledger.
type documentStore struct {
	docs map[string]Document
}

func newDocumentStore() *documentStore {
	return &documentStore{docs: map[string]Document{}}
}

func (s *documentStore) put(id string, doc Document) {
	s.docs[id] = doc
}

func (s *documentStore) get(id string) (Document, bool) {
	doc, ok := s.docs[id]
	return doc, ok
}

func (s *documentStore) len() int { return len(s.docs) }

// clear releases every retained handle.
func (s *documentStore) clear() {
	for _, doc := range s.docs {
		_ = doc.Close()
	}
	s.docs = map[string]Document{}
}
