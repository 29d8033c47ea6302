// Package domain defines the canonical transaction types shared by the
// import pipeline: normalized incoming transactions, persisted ledger rows,
// and the per-batch import result.
package domain

import (
	"fmt"
	"time"
)

// DateLayout is the canonical calendar date layout used everywhere in the
// module. Dates carry no time component.
const DateLayout = "2006-01-02"

// NormalizedTransaction is the format-independent representation of one
// imported transaction. Amount is an integer count of minor currency units
// (cents); no floating-point currency value ever persists.
type NormalizedTransaction struct {
	AccountID     string
	Date          string // YYYY-MM-DD
	Amount        int64  // minor units, sign = direction
	ImportedPayee string // payee text as it appeared in the source file
	Payee         string // cleaned display payee
	Notes         string // empty unless note import is enabled
	SourceID      string // native unique ID from the source format, if any
	ImportID      string // stable dedup key, assigned after normalization
}

// NewNormalizedTransaction creates a validated normalized transaction.
// ImportID is assigned later by the importid package.
func NewNormalizedTransaction(accountID, date string, amount int64, importedPayee, payee, notes string) (*NormalizedTransaction, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if payee == "" {
		return nil, fmt.Errorf("payee cannot be empty")
	}
	return &NormalizedTransaction{
		AccountID:     accountID,
		Date:          date,
		Amount:        amount,
		ImportedPayee: importedPayee,
		Payee:         payee,
		Notes:         notes,
	}, nil
}

// LedgerTransaction is a persisted ledger row. The storage engine assigns ID;
// UserEdited is set by the storage layer whenever a user has changed payee or
// notes after the original import. Rows entered by hand have an empty
// ImportID until a later import reconciles them.
type LedgerTransaction struct {
	ID            int64
	AccountID     string
	Date          string
	Amount        int64
	ImportedPayee string
	Payee         string
	Notes         string
	ImportID      string
	UserEdited    bool
}

// RecordError is one per-record failure collected during an import. Record is
// the zero-based position of the offending record in source file order, or -1
// when the failure is not tied to a record.
type RecordError struct {
	Record  int
	Message string
}

func (e RecordError) Error() string {
	if e.Record < 0 {
		return e.Message
	}
	return fmt.Sprintf("record %d: %s", e.Record, e.Message)
}

// ImportBatchResult is produced once per import call and is immutable after
// return. Added and Updated carry ledger row identities so callers can report
// what changed without re-querying the ledger.
type ImportBatchResult struct {
	BatchID string
	Errors  []RecordError
	Added   []int64
	Updated []int64
	Fatal   bool
}

// Clean reports a fully successful import with no errors of any kind.
func (r *ImportBatchResult) Clean() bool {
	return !r.Fatal && len(r.Errors) == 0
}

// Partial reports that some records failed but the batch still applied.
func (r *ImportBatchResult) Partial() bool {
	return !r.Fatal && len(r.Errors) > 0
}
