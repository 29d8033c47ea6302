// Package store defines the ledger storage contract the reconciliation
// engine depends on, plus an in-memory implementation used by tests and
// dry runs.
package store

import (
	"context"
	"errors"

	"github.com/mwhitmer/bankmerge/internal/domain"
)

// ErrAccountNotFound is returned by Account lookups for unknown IDs.
var ErrAccountNotFound = errors.New("account not found")

// Account is the minimal account row the importer needs.
type Account struct {
	ID   string
	Name string
}

// Batch exposes transaction row primitives inside one logical batch
// transaction. All operations are scoped to the account the batch was opened
// for.
type Batch interface {
	// Transactions returns every ledger row for the account.
	Transactions(ctx context.Context) ([]*domain.LedgerTransaction, error)

	// Insert stores a new row and returns its storage-assigned identity.
	Insert(ctx context.Context, txn *domain.LedgerTransaction) (int64, error)

	// Update rewrites payee, notes, imported payee, and import ID of an
	// existing row. Identity fields (account, date, amount) are not touched
	// by imports.
	Update(ctx context.Context, txn *domain.LedgerTransaction) error
}

// Store is the persistence collaborator contract. Implementations must
// serialize writes per account so a batch sees a stable candidate pool.
type Store interface {
	// Account looks up an account by ID; ErrAccountNotFound when missing.
	Account(ctx context.Context, id string) (*Account, error)

	// InsertAccount creates an account. Inserting an existing ID is an error.
	InsertAccount(ctx context.Context, acct *Account) error

	// WithinBatch runs fn inside one logical transaction for the account.
	// All mutations fn performs commit together or not at all; an error from
	// fn rolls everything back and is returned unchanged.
	WithinBatch(ctx context.Context, accountID string, fn func(Batch) error) error
}
