package book

// Registry owns the per-symbol books for one pipeline instance. It replaces
// ambient process-wide state so multiple independent pipelines can coexist
// (and be tested) in one process. It is not safe for concurrent use; the
// ingestion goroutine is the only writer.
type Registry struct {
	books map[string]*Book
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{books: make(map[string]*Book)}
}

// Get returns the book for symbol, creating it lazily on first use. Books
// live for the lifetime of the registry and are never destroyed.
func (r *Registry) Get(symbol string) *Book {
	b, ok := r.books[symbol]
	if !ok {
		b = New(symbol)
		r.books[symbol] = b
	}
	return b
}

// Symbols returns the symbols that currently have a book.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.books))
	for s := range r.books {
		out = append(out, s)
	}
	return out
}
