// Package qif provides QIF statement parsing.
package qif

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/mwhitmer/bankmerge/internal/domain"
	"github.com/mwhitmer/bankmerge/internal/parser"
)

// Parser implements QIF parsing with a stateless design, safe for concurrent
// use. QIF is a line-tagged format: each line starts with a one-character
// field code, records are terminated by "^". Dates are ambiguous in QIF
// (MM/DD/YYYY vs DD/MM/YYYY); they are carried verbatim and resolved by the
// normalizer against a caller-supplied pattern.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared QIF parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "qif"
}

// CanParse checks extension and the leading !Type header.
func (p *Parser) CanParse(path string, header []byte) bool {
	if strings.ToLower(filepath.Ext(path)) != ".qif" {
		return false
	}
	// A missing !Type line is tolerated; some exporters omit it.
	return len(header) == 0 || header[0] == '!' || header[0] == 'D' || header[0] == 'T'
}

// Parse extracts raw records from a QIF file. Individual malformed records
// are reported in Result.Errors and skipped; only an unreadable stream fails
// the whole file.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*parser.Result, error) {
	scanner := bufio.NewScanner(r)
	result := &parser.Result{}

	var (
		current  parser.RawRecord
		sawField bool
		index    int // zero-based record position in file order
	)

	flush := func() {
		if !sawField {
			return
		}
		if err := validate(current); err != nil {
			result.Errors = append(result.Errors, domain.RecordError{
				Record:  index,
				Message: err.Error(),
			})
		} else {
			current.Index = index
			result.Records = append(result.Records, current)
		}
		current = parser.RawRecord{}
		sawField = false
		index++
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		code, rest := line[:1], strings.TrimSpace(line[1:])
		switch code {
		case "!":
			// Section header (!Type:Bank etc.), no record data.
		case "^":
			flush()
		case "D":
			current.Date = rest
			sawField = true
		case "T", "U":
			// T and U both carry the amount; U wins when both are present.
			if code == "U" || current.Amount == "" {
				current.Amount = rest
			}
			sawField = true
		case "P":
			current.Payee = rest
			sawField = true
		case "M":
			current.Memo = rest
			sawField = true
		case "N":
			// Check/reference number. Not a stable unique ID, ignored.
		default:
			// Unknown field codes (L, A, S, ...) are skipped, not errors.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read QIF content: %w", err)
	}

	// Records not closed by a trailing ^ are still accepted.
	flush()

	return result, nil
}

func validate(rec parser.RawRecord) error {
	if rec.Date == "" {
		return fmt.Errorf("missing date field")
	}
	if rec.Amount == "" {
		return fmt.Errorf("missing amount field")
	}
	if rec.Payee == "" {
		return fmt.Errorf("missing payee field")
	}
	return nil
}
