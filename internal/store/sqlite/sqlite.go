// Package sqlite provides a SQLite-backed ledger store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/mwhitmer/bankmerge/internal/domain"
	"github.com/mwhitmer/bankmerge/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id     TEXT NOT NULL REFERENCES accounts(id),
	date           TEXT NOT NULL,
	amount         INTEGER NOT NULL,
	imported_payee TEXT NOT NULL DEFAULT '',
	payee          TEXT NOT NULL,
	notes          TEXT NOT NULL DEFAULT '',
	import_id      TEXT NOT NULL DEFAULT '',
	user_edited    INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_account_import
	ON transactions(account_id, import_id) WHERE import_id != '';

CREATE INDEX IF NOT EXISTS idx_transactions_account_date
	ON transactions(account_id, date);
`

// Store implements store.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. WAL mode and a busy timeout follow the usual SQLite setup;
// a single connection sidesteps writer lock contention and serializes
// batches.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Account looks up an account by ID.
func (s *Store) Account(ctx context.Context, id string) (*store.Account, error) {
	var acct store.Account
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM accounts WHERE id = ?`, id).
		Scan(&acct.ID, &acct.Name)
	if err == sql.ErrNoRows {
		return nil, store.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account %s: %w", id, err)
	}
	return &acct, nil
}

// InsertAccount creates an account.
func (s *Store) InsertAccount(ctx context.Context, acct *store.Account) error {
	if acct == nil || acct.ID == "" {
		return fmt.Errorf("account ID cannot be empty")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name) VALUES (?, ?)`, acct.ID, acct.Name); err != nil {
		return fmt.Errorf("failed to insert account %s: %w", acct.ID, err)
	}
	return nil
}

// EditTransaction applies a user edit to payee and notes, marking the row
// user-edited. This is the path the surrounding application calls when the
// user changes a transaction; later imports then leave the row alone.
func (s *Store) EditTransaction(ctx context.Context, id int64, payee, notes string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET payee = ?, notes = ?, user_edited = 1 WHERE id = ?`,
		payee, notes, id)
	if err != nil {
		return fmt.Errorf("failed to edit transaction %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d not found", id)
	}
	return nil
}

// WithinBatch runs fn inside one database transaction. Any error from fn
// rolls everything back.
func (s *Store) WithinBatch(ctx context.Context, accountID string, fn func(store.Batch) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}

	if err := fn(&batch{tx: tx, accountID: accountID}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

type batch struct {
	tx        *sql.Tx
	accountID string
}

func (b *batch) Transactions(ctx context.Context) ([]*domain.LedgerTransaction, error) {
	rows, err := b.tx.QueryContext(ctx, `
		SELECT id, account_id, date, amount, imported_payee, payee, notes, import_id, user_edited
		FROM transactions WHERE account_id = ? ORDER BY id`, b.accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []*domain.LedgerTransaction
	for rows.Next() {
		var t domain.LedgerTransaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Date, &t.Amount,
			&t.ImportedPayee, &t.Payee, &t.Notes, &t.ImportID, &t.UserEdited); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, &t)
	}
	return txns, rows.Err()
}

func (b *batch) Insert(ctx context.Context, txn *domain.LedgerTransaction) (int64, error) {
	if txn.AccountID != b.accountID {
		return 0, fmt.Errorf("transaction account %s does not match batch account %s", txn.AccountID, b.accountID)
	}
	res, err := b.tx.ExecContext(ctx, `
		INSERT INTO transactions (account_id, date, amount, imported_payee, payee, notes, import_id, user_edited)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.AccountID, txn.Date, txn.Amount, txn.ImportedPayee, txn.Payee, txn.Notes, txn.ImportID, txn.UserEdited)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return res.LastInsertId()
}

func (b *batch) Update(ctx context.Context, txn *domain.LedgerTransaction) error {
	res, err := b.tx.ExecContext(ctx, `
		UPDATE transactions SET imported_payee = ?, payee = ?, notes = ?, import_id = ?
		WHERE id = ? AND account_id = ?`,
		txn.ImportedPayee, txn.Payee, txn.Notes, txn.ImportID, txn.ID, b.accountID)
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", txn.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d not found in account %s", txn.ID, b.accountID)
	}
	return nil
}
