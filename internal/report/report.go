// Package report accumulates per-record import failures and assembles the
// batch result returned to the caller.
package report

import (
	"github.com/google/uuid"

	"github.com/mwhitmer/bankmerge/internal/domain"
)

// Reporter collects record errors in source order without interrupting the
// batch. Not safe for concurrent use; a batch is processed sequentially.
type Reporter struct {
	batchID string
	errors  []domain.RecordError
}

// New creates a reporter with a fresh batch identity.
func New() *Reporter {
	return &Reporter{batchID: uuid.NewString()}
}

// Record adds a per-record failure. index is the zero-based position of the
// record in source file order, or -1 for failures not tied to a record.
func (r *Reporter) Record(index int, err error) {
	r.errors = append(r.errors, domain.RecordError{Record: index, Message: err.Error()})
}

// Append copies errors a parser already collected.
func (r *Reporter) Append(errs []domain.RecordError) {
	r.errors = append(r.errors, errs...)
}

// Len returns the number of collected errors.
func (r *Reporter) Len() int {
	return len(r.errors)
}

// Result assembles the batch result for a completed (clean or partial)
// import.
func (r *Reporter) Result(added, updated []int64) *domain.ImportBatchResult {
	return &domain.ImportBatchResult{
		BatchID: r.batchID,
		Errors:  append([]domain.RecordError(nil), r.errors...),
		Added:   append([]int64(nil), added...),
		Updated: append([]int64(nil), updated...),
	}
}

// Fatal assembles the result for a whole-batch failure: a single error entry
// and nothing applied, regardless of what was collected before.
func (r *Reporter) Fatal(err error) *domain.ImportBatchResult {
	return &domain.ImportBatchResult{
		BatchID: r.batchID,
		Errors:  []domain.RecordError{{Record: -1, Message: err.Error()}},
		Fatal:   true,
	}
}
