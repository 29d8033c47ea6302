// Package parser defines the strategy interface implemented by every file
// format parser, and the raw record shape they all emit.
package parser

import (
	"context"
	"io"

	"github.com/mwhitmer/bankmerge/internal/domain"
)

// Parser is the capability interface for one statement file format.
// Implementations never leak format grammar beyond this boundary: they emit
// RawRecords and per-record errors, and the rest of the pipeline only relies
// on that shape.
type Parser interface {
	// Name returns the parser identifier (e.g. "ofx", "qif", "camt").
	Name() string

	// CanParse checks if this parser should handle the file, based on the
	// filename and the first bytes of content.
	CanParse(path string, header []byte) bool

	// Parse extracts raw records from the file. A returned error means the
	// whole file is unreadable; per-record failures go into Result.Errors
	// and do not abort the rest of the file.
	Parse(ctx context.Context, r io.Reader) (*Result, error)
}

// Result is the output of parsing one file.
type Result struct {
	Records []RawRecord
	Errors  []domain.RecordError
}

// RawRecord is a format-specific transaction record as emitted by a parser,
// before normalization. All fields are carried verbatim from the source;
// date and amount conventions are resolved by the normalizer. Ephemeral:
// discarded once normalized.
type RawRecord struct {
	// Index is the zero-based position of the record in source file order.
	// Records a parser rejected still occupy their position, so Index and
	// Result.Errors refer to the same numbering.
	Index int

	Date     string // free-form date string, format-specific convention
	Amount   string // signed decimal amount string
	Payee    string
	Memo     string // optional free-text notes
	SourceID string // native unique transaction ID (e.g. OFX FITID), if any
}
