// Package normalize converts raw parser records into canonical transaction
// values: integer minor-unit amounts, ISO calendar dates, and cleaned text.
package normalize

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mwhitmer/bankmerge/internal/domain"
	"github.com/mwhitmer/bankmerge/internal/parser"
)

// Clock supplies the current time. Injected so two-digit-year resolution is
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Options is the per-format normalization configuration.
type Options struct {
	// DateLayout is a Go reference layout for formats whose dates are
	// ambiguous (QIF). Empty means the source already emits unambiguous
	// YYYY-MM-DD dates (OFX, CAMT).
	DateLayout string

	// ImportNotes controls whether source memo text is carried into the
	// transaction notes. Enforced here, uniformly across all formats.
	ImportNotes bool
}

// Normalizer performs the pure RawRecord -> NormalizedTransaction transform.
type Normalizer struct {
	opts  Options
	clock Clock
}

// New creates a normalizer. A nil clock defaults to SystemClock.
func New(opts Options, clock Clock) *Normalizer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Normalizer{opts: opts, clock: clock}
}

// Normalize converts one raw record. Malformed amounts and dates return a
// *domain.ValidationError; the caller reports it and skips the record.
func (n *Normalizer) Normalize(accountID string, rec parser.RawRecord) (*domain.NormalizedTransaction, error) {
	amount, err := ParseAmount(rec.Amount)
	if err != nil {
		return nil, err
	}

	date, err := n.normalizeDate(rec.Date)
	if err != nil {
		return nil, err
	}

	importedPayee := strings.TrimSpace(rec.Payee)
	payee := CleanText(rec.Payee)
	if payee == "" {
		return nil, &domain.ValidationError{
			Field:   "payee",
			Value:   rec.Payee,
			Message: "empty after cleaning",
		}
	}

	notes := ""
	if n.opts.ImportNotes {
		notes = CleanText(rec.Memo)
	}

	txn, err := domain.NewNormalizedTransaction(accountID, date, amount, importedPayee, payee, notes)
	if err != nil {
		return nil, err
	}
	txn.SourceID = strings.TrimSpace(rec.SourceID)
	return txn, nil
}

// normalizeDate parses the source date strictly and re-emits it as
// YYYY-MM-DD. When a layout is configured it wins; otherwise the source must
// already be ISO.
func (n *Normalizer) normalizeDate(value string) (string, error) {
	layout := n.opts.DateLayout
	if layout == "" {
		layout = domain.DateLayout
	}

	// QIF writes dates like 1/ 2'06; collapse the quirks before parsing.
	cleaned := strings.ReplaceAll(strings.ReplaceAll(value, "'", "/"), " ", "")

	t, err := time.Parse(layout, cleaned)
	if err != nil {
		return "", &domain.ValidationError{
			Field:   "date",
			Value:   value,
			Message: fmt.Sprintf("does not match layout %s", layout),
		}
	}

	// Two-digit-year layouts leave the century to convention. Pin it to the
	// window [now-80y, now+20y] instead of trusting time.Parse's fixed rule.
	if strings.Contains(layout, "06") && !strings.Contains(layout, "2006") {
		t = n.resolveCentury(t)
	}

	return t.Format(domain.DateLayout), nil
}

func (n *Normalizer) resolveCentury(t time.Time) time.Time {
	now := n.clock.Now()
	year := t.Year() % 100
	century := (now.Year() / 100) * 100
	resolved := century + year
	if resolved > now.Year()+20 {
		resolved -= 100
	}
	return time.Date(resolved, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseAmount converts a signed decimal amount string to an integer count of
// minor units at a fixed scale of two (cents). Thousands separators are
// tolerated; more than two fraction digits, non-numeric input, and int64
// overflow are rejected.
func ParseAmount(value string) (int64, error) {
	fail := func(msg string) (int64, error) {
		return 0, &domain.ValidationError{Field: "amount", Value: value, Message: msg}
	}

	s := strings.TrimSpace(value)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return fail("empty")
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return fail("no digits")
	}
	if hasFrac && len(frac) > 2 {
		return fail("more than two fraction digits")
	}
	// Right-pad the fraction to the fixed scale.
	for len(frac) < 2 {
		frac += "0"
	}

	var minor int64
	for _, digits := range []string{whole, frac} {
		for _, c := range digits {
			if c < '0' || c > '9' {
				return fail("not a number")
			}
			d := int64(c - '0')
			if minor > (1<<63-1-d)/10 {
				return fail("overflows int64 minor units")
			}
			minor = minor*10 + d
		}
	}

	if negative {
		minor = -minor
	}
	return minor, nil
}

// FormatAmount renders minor units back to the decimal string form, so that
// ParseAmount(FormatAmount(v)) == v for every v ParseAmount can produce. The
// magnitude is taken in uint64 space, so math.MinInt64 formats correctly
// instead of negating into overflow.
func FormatAmount(minor int64) string {
	sign := ""
	u := uint64(minor)
	if minor < 0 {
		sign = "-"
		u = -u
	}
	return fmt.Sprintf("%s%d.%02d", sign, u/100, u%100)
}

// CleanText decodes source text to canonical UTF-8, unescapes HTML entities
// that some OFX producers embed in free-text fields, normalizes to NFC, and
// collapses runs of whitespace.
func CleanText(s string) string {
	if !utf8.ValidString(s) {
		// Bank exports that are not UTF-8 are almost always Windows-1252.
		if decoded, err := charmap.Windows1252.NewDecoder().String(s); err == nil {
			s = decoded
		}
	}

	s = html.UnescapeString(s)

	t := transform.Chain(norm.NFD, runes.Remove(controlRunes{}), norm.NFC)
	if normalized, _, err := transform.String(t, s); err == nil {
		s = normalized
	}

	return strings.Join(strings.Fields(s), " ")
}

// controlRunes matches C0/C1 control characters stripped during cleaning.
type controlRunes struct{}

func (controlRunes) Contains(r rune) bool {
	return r < 0x20 || (r >= 0x7f && r < 0xa0)
}
