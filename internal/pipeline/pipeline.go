// Package pipeline orchestrates one file import: detect format, parse,
// normalize, assign import IDs, reconcile against the ledger.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/mwhitmer/bankmerge/internal/domain"
	"github.com/mwhitmer/bankmerge/internal/importid"
	"github.com/mwhitmer/bankmerge/internal/normalize"
	"github.com/mwhitmer/bankmerge/internal/reconcile"
	"github.com/mwhitmer/bankmerge/internal/registry"
	"github.com/mwhitmer/bankmerge/internal/report"
	"github.com/mwhitmer/bankmerge/internal/store"
)

// Options configures one import call.
type Options struct {
	// AccountID is the ledger account the file belongs to. The account must
	// already exist.
	AccountID string

	// ImportNotes controls whether source memo text is imported, uniformly
	// across all formats.
	ImportNotes bool

	// DateLayouts maps parser name to a Go reference layout for formats
	// whose dates are ambiguous (QIF). Formats absent from the map must
	// already emit ISO dates.
	DateLayouts map[string]string

	// Reconcile carries the fuzzy-matching thresholds.
	Reconcile reconcile.Config

	// Clock overrides the normalizer's time source. Nil means wall clock.
	Clock normalize.Clock
}

// Pipeline runs imports against one ledger store. Imports for different
// accounts are independent and may run concurrently; the store serializes
// writes per account.
type Pipeline struct {
	registry *registry.Registry
	store    store.Store
	log      *slog.Logger
}

// New creates a pipeline. A nil logger discards output.
func New(st store.Store, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		registry: registry.New(),
		store:    st,
		log:      log,
	}
}

// Registry exposes the parser registry for custom parser registration.
func (p *Pipeline) Registry() *registry.Registry {
	return p.registry
}

// ImportFile imports one statement file. Fatal conditions (unsupported
// format, unreadable file, storage failure) produce a result with a single
// error and nothing applied; per-record failures are collected in the result
// while the remaining records still import.
func (p *Pipeline) ImportFile(ctx context.Context, path string, opts Options) *domain.ImportBatchResult {
	rep := report.New()

	f, err := os.Open(path)
	if err != nil {
		return rep.Fatal(fmt.Errorf("failed to open %s: %w", filepath.Base(path), err))
	}
	defer f.Close()

	return p.importReader(ctx, path, f, opts, rep)
}

// ImportReader imports a statement from a reader; name is the original
// filename used for format detection.
func (p *Pipeline) ImportReader(ctx context.Context, name string, r io.Reader, opts Options) *domain.ImportBatchResult {
	return p.importReader(ctx, name, r, opts, report.New())
}

func (p *Pipeline) importReader(ctx context.Context, name string, r io.Reader, opts Options, rep *report.Reporter) *domain.ImportBatchResult {
	// Format detection comes first; an unknown extension aborts the whole
	// import before any parsing with the one mandated error.
	buffered := bufio.NewReaderSize(r, 512)
	header, err := buffered.Peek(512)
	if err != nil && err != io.EOF {
		return rep.Fatal(fmt.Errorf("failed to read %s: %w", filepath.Base(name), err))
	}

	prs, err := p.registry.Match(name, header)
	if err != nil {
		return rep.Fatal(err)
	}

	if _, err := p.store.Account(ctx, opts.AccountID); err != nil {
		return rep.Fatal(&domain.StorageError{Op: "account lookup", Err: err})
	}

	parsed, err := prs.Parse(ctx, buffered)
	if err != nil {
		return rep.Fatal(err)
	}

	normalizer := normalize.New(normalize.Options{
		DateLayout:  opts.DateLayouts[prs.Name()],
		ImportNotes: opts.ImportNotes,
	}, opts.Clock)
	txns := make([]*domain.NormalizedTransaction, 0, len(parsed.Records))
	recordErrs := append([]domain.RecordError(nil), parsed.Errors...)
	for _, rec := range parsed.Records {
		txn, err := normalizer.Normalize(opts.AccountID, rec)
		if err != nil {
			// rec.Index is the source file position, shared with the
			// parser's own error numbering.
			recordErrs = append(recordErrs, domain.RecordError{
				Record:  rec.Index,
				Message: err.Error(),
			})
			continue
		}
		txns = append(txns, txn)
	}
	// Parse and validation failures interleave in the source; report them as
	// one sequence in record order.
	sort.SliceStable(recordErrs, func(i, j int) bool {
		return recordErrs[i].Record < recordErrs[j].Record
	})
	rep.Append(recordErrs)

	importid.Assign(txns)

	// Once storage mutation begins the batch runs to completion; caller
	// cancellation no longer applies.
	res, err := p.reconciler(opts.Reconcile).Reconcile(context.WithoutCancel(ctx), opts.AccountID, txns)
	if err != nil {
		return rep.Fatal(err)
	}

	p.log.Info("import complete", "file", filepath.Base(name),
		"parser", prs.Name(), "records", len(parsed.Records),
		"added", len(res.Added), "updated", len(res.Updated), "errors", rep.Len())

	return rep.Result(res.Added, res.Updated)
}

func (p *Pipeline) reconciler(cfg reconcile.Config) *reconcile.Engine {
	return reconcile.NewEngine(p.store, cfg, p.log)
}
