package source

// Session wraps a live document with a mutable selection, standing in for an
// interactive editing session. The document itself is externally owned and
// only read; selection changes made for a partial export are restored by
// WithSelection before it returns.
type Session struct {
	doc       *Document
	selection []string
}

// NewSession creates a session over a document. The initial selection comes
// from the document's saved selection, if any.
func NewSession(doc *Document) *Session {
	s := &Session{doc: doc}
	s.SetSelection(doc.Selection...)
	return s
}

// Document returns the underlying document.
func (s *Session) Document() *Document {
	return s.doc
}

// Selection returns a copy of the current selection.
func (s *Session) Selection() []string {
	out := make([]string, len(s.selection))
	copy(out, s.selection)
	return out
}

// SetSelection replaces the current selection.
func (s *Session) SetSelection(names ...string) {
	s.selection = make([]string, len(names))
	copy(s.selection, names)
}

// WithSelection temporarily selects the given objects, runs fn, and restores
// the previous selection regardless of fn's outcome.
func (s *Session) WithSelection(names []string, fn func() error) error {
	prev := s.selection
	s.SetSelection(names...)
	defer func() { s.selection = prev }()
	return fn()
}
