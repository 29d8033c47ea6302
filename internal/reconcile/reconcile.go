// Package reconcile matches normalized incoming transactions against
// existing ledger rows and applies insert/update/skip decisions inside one
// batch transaction.
package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mwhitmer/bankmerge/internal/domain"
	"github.com/mwhitmer/bankmerge/internal/store"
)

// Config holds the fuzzy-matching thresholds. Zero value means exact-day
// matching with the default payee similarity threshold.
type Config struct {
	// DateToleranceDays widens the fuzzy-match date window; 0 = same day.
	DateToleranceDays int

	// PayeeThreshold is the minimum payee similarity in [0,1] for a fuzzy
	// match. 0 means DefaultPayeeThreshold.
	PayeeThreshold float64
}

// DefaultPayeeThreshold is used when Config.PayeeThreshold is unset.
const DefaultPayeeThreshold = 0.7

func (c Config) payeeThreshold() float64 {
	if c.PayeeThreshold <= 0 {
		return DefaultPayeeThreshold
	}
	return c.PayeeThreshold
}

// Result reports what one reconciliation pass changed.
type Result struct {
	Added   []int64
	Updated []int64
}

// Engine reconciles import batches against a ledger store.
type Engine struct {
	store store.Store
	cfg   Config
	log   *slog.Logger
}

// NewEngine creates a reconciliation engine. A nil logger discards output.
func NewEngine(st store.Store, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: st, cfg: cfg, log: log}
}

// Reconcile processes the incoming transactions for one account, in order,
// inside a single store transaction. Per transaction it decides:
//
//  1. Exact ImportID match: already imported. No insert; payee/notes are
//     refreshed from the new data unless the row is user-edited.
//  2. Fuzzy match against an unreconciled row (date within tolerance, equal
//     amount, payee similarity above threshold): the row was entered by hand
//     before the bank feed caught up. The ImportID is attached to it instead
//     of inserting a duplicate.
//  3. No match: insert a new row.
//
// A ledger row is claimed at most once per batch; later incoming
// transactions cannot match a row already claimed. Any store failure rolls
// the whole batch back and surfaces as *domain.StorageError.
func (e *Engine) Reconcile(ctx context.Context, accountID string, incoming []*domain.NormalizedTransaction) (*Result, error) {
	result := &Result{}

	err := e.store.WithinBatch(ctx, accountID, func(batch store.Batch) error {
		rows, err := batch.Transactions(ctx)
		if err != nil {
			return &domain.StorageError{Op: "query", Err: err}
		}

		byImportID := make(map[string]*domain.LedgerTransaction)
		var unreconciled []*domain.LedgerTransaction
		for _, row := range rows {
			if row.ImportID != "" {
				byImportID[row.ImportID] = row
			} else {
				unreconciled = append(unreconciled, row)
			}
		}
		claimed := make(map[int64]bool)

		for _, txn := range incoming {
			if row, ok := byImportID[txn.ImportID]; ok {
				if claimed[row.ID] {
					// Same ImportID twice in one file: the row is taken,
					// and inserting would duplicate the key. Skip.
					e.log.Warn("duplicate import ID within batch, skipping",
						"importId", txn.ImportID, "account", accountID)
					continue
				}
				claimed[row.ID] = true
				if updated, err := e.refresh(ctx, batch, row, txn, false); err != nil {
					return err
				} else if updated {
					result.Updated = append(result.Updated, row.ID)
				}
				continue
			}

			if row := e.fuzzyMatch(txn, unreconciled, claimed); row != nil {
				claimed[row.ID] = true
				if _, err := e.refresh(ctx, batch, row, txn, true); err != nil {
					return err
				}
				// Attaching the ImportID always counts as an update: the row
				// changed from manual to reconciled.
				result.Updated = append(result.Updated, row.ID)
				byImportID[txn.ImportID] = row
				continue
			}

			id, err := batch.Insert(ctx, &domain.LedgerTransaction{
				AccountID:     txn.AccountID,
				Date:          txn.Date,
				Amount:        txn.Amount,
				ImportedPayee: txn.ImportedPayee,
				Payee:         txn.Payee,
				Notes:         txn.Notes,
				ImportID:      txn.ImportID,
			})
			if err != nil {
				return &domain.StorageError{Op: "insert", Err: err}
			}
			result.Added = append(result.Added, id)

			inserted := &domain.LedgerTransaction{ID: id, ImportID: txn.ImportID}
			byImportID[txn.ImportID] = inserted
			claimed[id] = true
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("reconcile complete", "account", accountID,
		"incoming", len(incoming), "added", len(result.Added), "updated", len(result.Updated))
	return result, nil
}

// refresh folds incoming data into an existing row. User edits win: an
// edited row keeps its payee and notes, and only gains an ImportID when
// attachID is set (the fuzzy path). Returns whether the row was written.
func (e *Engine) refresh(ctx context.Context, batch store.Batch, row *domain.LedgerTransaction, txn *domain.NormalizedTransaction, attachID bool) (bool, error) {
	changed := false

	if attachID && row.ImportID != txn.ImportID {
		row.ImportID = txn.ImportID
		changed = true
	}

	if !row.UserEdited {
		if row.Payee != txn.Payee {
			row.Payee = txn.Payee
			changed = true
		}
		if row.ImportedPayee != txn.ImportedPayee {
			row.ImportedPayee = txn.ImportedPayee
			changed = true
		}
		// Empty incoming notes mean note import is disabled; never wipe
		// existing notes with that.
		if txn.Notes != "" && row.Notes != txn.Notes {
			row.Notes = txn.Notes
			changed = true
		}
	}

	if !changed {
		return false, nil
	}
	if err := batch.Update(ctx, row); err != nil {
		return false, &domain.StorageError{Op: "update", Err: err}
	}
	return true, nil
}

// fuzzyMatch finds the best unclaimed, unreconciled row with equal amount, a
// date within tolerance, and payee similarity above threshold.
func (e *Engine) fuzzyMatch(txn *domain.NormalizedTransaction, candidates []*domain.LedgerTransaction, claimed map[int64]bool) *domain.LedgerTransaction {
	var (
		best      *domain.LedgerTransaction
		bestScore float64
	)
	threshold := e.cfg.payeeThreshold()

	for _, row := range candidates {
		if claimed[row.ID] || row.Amount != txn.Amount {
			continue
		}
		if !e.datesClose(row.Date, txn.Date) {
			continue
		}
		score := PayeeSimilarity(row.Payee, txn.Payee)
		if score >= threshold && score > bestScore {
			best = row
			bestScore = score
		}
	}
	return best
}

func (e *Engine) datesClose(a, b string) bool {
	ta, errA := time.Parse(domain.DateLayout, a)
	tb, errB := time.Parse(domain.DateLayout, b)
	if errA != nil || errB != nil {
		return false
	}
	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(e.cfg.DateToleranceDays)*24*time.Hour
}

// PayeeSimilarity returns a [0,1] similarity score between two payee
// strings: 1 - levenshtein/maxlen over the case-folded, space-collapsed
// forms.
func PayeeSimilarity(a, b string) float64 {
	na := foldPayee(a)
	nb := foldPayee(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	maxLen := len([]rune(na))
	if l := len([]rune(nb)); l > maxLen {
		maxLen = l
	}
	return 1 - float64(levenshtein([]rune(na), []rune(nb)))/float64(maxLen)
}

func foldPayee(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// levenshtein computes edit distance with a two-row dynamic program.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
