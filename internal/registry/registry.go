// Package registry selects a format parser for a statement file.
package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/mwhitmer/bankmerge/internal/parser"
	"github.com/mwhitmer/bankmerge/internal/parsers/camt"
	"github.com/mwhitmer/bankmerge/internal/parsers/ofx"
	"github.com/mwhitmer/bankmerge/internal/parsers/qif"

	"github.com/mwhitmer/bankmerge/internal/domain"
)

// Registry holds all registered parsers.
type Registry struct {
	parsers []parser.Parser
}

// New creates a registry with all built-in parsers.
func New() *Registry {
	return &Registry{
		parsers: []parser.Parser{
			qif.NewParser(),
			ofx.NewParser(),
			camt.NewParser(),
		},
	}
}

// Register adds a custom parser (for extensibility).
func (r *Registry) Register(p parser.Parser) {
	r.parsers = append(r.parsers, p)
}

// Match returns the parser claiming this file, given the filename and a
// content peek. No parser claiming the file means the format is unsupported:
// the returned error is domain.ErrUnsupportedFormat, which aborts the whole
// import before any parsing is attempted.
func (r *Registry) Match(path string, header []byte) (parser.Parser, error) {
	for _, p := range r.parsers {
		if p.CanParse(path, header) {
			return p, nil
		}
	}
	return nil, domain.ErrUnsupportedFormat
}

// FindParser opens the file, reads the first 512 bytes, and selects a parser
// via Match. 512 bytes is enough to detect the headers of every supported
// format (QIF type line, OFX header, CAMT namespace declaration).
func (r *Registry) FindParser(path string) (parser.Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	// EOF is OK, minimal files may be shorter than 512 bytes.
	return r.Match(path, header[:n])
}

// ListParsers returns the names of all registered parsers.
func (r *Registry) ListParsers() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}
