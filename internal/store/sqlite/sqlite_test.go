package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mwhitmer/bankmerge/internal/domain"
	"github.com/mwhitmer/bankmerge/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStore_Accounts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.Account(ctx, "missing"); !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("Account(missing) error = %v, want ErrAccountNotFound", err)
	}

	if err := st.InsertAccount(ctx, &store.Account{ID: "acct-1", Name: "Checking"}); err != nil {
		t.Fatalf("InsertAccount() error = %v", err)
	}
	acct, err := st.Account(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if acct.Name != "Checking" {
		t.Errorf("account name = %q", acct.Name)
	}

	if err := st.InsertAccount(ctx, &store.Account{ID: "acct-1", Name: "Again"}); err == nil {
		t.Error("InsertAccount() duplicate should fail")
	}
}

func TestStore_BatchInsertAndQuery(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.InsertAccount(ctx, &store.Account{ID: "acct-1", Name: "Checking"}); err != nil {
		t.Fatalf("InsertAccount() error = %v", err)
	}

	err := st.WithinBatch(ctx, "acct-1", func(b store.Batch) error {
		for i, payee := range []string{"Coffee Shop", "Employer Inc"} {
			if _, err := b.Insert(ctx, &domain.LedgerTransaction{
				AccountID: "acct-1",
				Date:      fmt.Sprintf("2024-01-%02d", 15+i),
				Amount:    int64(-5000 * (i + 1)),
				Payee:     payee,
				ImportID:  fmt.Sprintf("id-%d", i+1),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinBatch() error = %v", err)
	}

	var rows []*domain.LedgerTransaction
	err = st.WithinBatch(ctx, "acct-1", func(b store.Batch) error {
		var err error
		rows, err = b.Transactions(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("WithinBatch() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Payee != "Coffee Shop" || rows[0].Amount != -5000 || rows[0].ImportID != "id-1" {
		t.Errorf("row[0] = %+v", rows[0])
	}
	if rows[0].ID >= rows[1].ID {
		t.Errorf("rows not in ID order: %d, %d", rows[0].ID, rows[1].ID)
	}
}

func TestStore_BatchRollback(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.InsertAccount(ctx, &store.Account{ID: "acct-1", Name: "Checking"}); err != nil {
		t.Fatalf("InsertAccount() error = %v", err)
	}

	boom := fmt.Errorf("boom")
	err := st.WithinBatch(ctx, "acct-1", func(b store.Batch) error {
		if _, err := b.Insert(ctx, &domain.LedgerTransaction{
			AccountID: "acct-1", Date: "2024-01-15", Amount: -5000, Payee: "Coffee Shop",
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinBatch() error = %v, want boom", err)
	}

	var rows []*domain.LedgerTransaction
	if err := st.WithinBatch(ctx, "acct-1", func(b store.Batch) error {
		var err error
		rows, err = b.Transactions(ctx)
		return err
	}); err != nil {
		t.Fatalf("WithinBatch() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %d after rollback, want 0", len(rows))
	}
}

func TestStore_UniqueImportIDPerAccount(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"acct-1", "acct-2"} {
		if err := st.InsertAccount(ctx, &store.Account{ID: id, Name: id}); err != nil {
			t.Fatalf("InsertAccount(%s) error = %v", id, err)
		}
	}

	insert := func(account, importID string) error {
		return st.WithinBatch(ctx, account, func(b store.Batch) error {
			_, err := b.Insert(ctx, &domain.LedgerTransaction{
				AccountID: account, Date: "2024-01-15", Amount: -5000,
				Payee: "Coffee Shop", ImportID: importID,
			})
			return err
		})
	}

	if err := insert("acct-1", "id-1"); err != nil {
		t.Fatalf("first insert error = %v", err)
	}
	if err := insert("acct-1", "id-1"); err == nil {
		t.Error("duplicate import ID in same account should fail")
	}
	// Same key in another account is fine.
	if err := insert("acct-2", "id-1"); err != nil {
		t.Errorf("same import ID in other account error = %v", err)
	}
	// Unreconciled rows carry empty import IDs without colliding.
	if err := insert("acct-1", ""); err != nil {
		t.Errorf("first empty import ID error = %v", err)
	}
	if err := insert("acct-1", ""); err != nil {
		t.Errorf("second empty import ID error = %v", err)
	}
}

func TestStore_BatchUpdate(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.InsertAccount(ctx, &store.Account{ID: "acct-1", Name: "Checking"}); err != nil {
		t.Fatalf("InsertAccount() error = %v", err)
	}

	var id int64
	if err := st.WithinBatch(ctx, "acct-1", func(b store.Batch) error {
		var err error
		id, err = b.Insert(ctx, &domain.LedgerTransaction{
			AccountID: "acct-1", Date: "2024-01-15", Amount: -5000, Payee: "coffee shop",
		})
		return err
	}); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	if err := st.WithinBatch(ctx, "acct-1", func(b store.Batch) error {
		return b.Update(ctx, &domain.LedgerTransaction{
			ID: id, AccountID: "acct-1", Payee: "Coffee Shop", ImportID: "id-1",
		})
	}); err != nil {
		t.Fatalf("update error = %v", err)
	}

	var rows []*domain.LedgerTransaction
	if err := st.WithinBatch(ctx, "acct-1", func(b store.Batch) error {
		var err error
		rows, err = b.Transactions(ctx)
		return err
	}); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if rows[0].Payee != "Coffee Shop" || rows[0].ImportID != "id-1" {
		t.Errorf("row = %+v, want updated payee and import ID", rows[0])
	}

	if err := st.WithinBatch(ctx, "acct-1", func(b store.Batch) error {
		return b.Update(ctx, &domain.LedgerTransaction{ID: 9999, AccountID: "acct-1"})
	}); err == nil {
		t.Error("update of unknown row should fail")
	}
}

func TestStore_EditTransaction(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.InsertAccount(ctx, &store.Account{ID: "acct-1", Name: "Checking"}); err != nil {
		t.Fatalf("InsertAccount() error = %v", err)
	}

	var id int64
	if err := st.WithinBatch(ctx, "acct-1", func(b store.Batch) error {
		var err error
		id, err = b.Insert(ctx, &domain.LedgerTransaction{
			AccountID: "acct-1", Date: "2024-01-15", Amount: -5000,
			Payee: "Coffee Shop", ImportID: "id-1",
		})
		return err
	}); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	if err := st.EditTransaction(ctx, id, "My Cafe", "weekly treat"); err != nil {
		t.Fatalf("EditTransaction() error = %v", err)
	}

	var rows []*domain.LedgerTransaction
	if err := st.WithinBatch(ctx, "acct-1", func(b store.Batch) error {
		var err error
		rows, err = b.Transactions(ctx)
		return err
	}); err != nil {
		t.Fatalf("query error = %v", err)
	}
	row := rows[0]
	if row.Payee != "My Cafe" || row.Notes != "weekly treat" || !row.UserEdited {
		t.Errorf("row = %+v, want edited and user_edited set", row)
	}

	if err := st.EditTransaction(ctx, 9999, "x", "y"); err == nil {
		t.Error("EditTransaction() of unknown row should fail")
	}
}
