package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/mwhitmer/bankmerge/internal/domain"
	"github.com/mwhitmer/bankmerge/internal/store"
)

func newTestStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	if err := st.InsertAccount(context.Background(), &store.Account{ID: "acct-1", Name: "Checking"}); err != nil {
		t.Fatalf("InsertAccount() error = %v", err)
	}
	return st
}

func incoming(importID, date string, amount int64, payee string) *domain.NormalizedTransaction {
	return &domain.NormalizedTransaction{
		AccountID:     "acct-1",
		Date:          date,
		Amount:        amount,
		ImportedPayee: payee,
		Payee:         payee,
		ImportID:      importID,
	}
}

func TestReconcile_InsertNew(t *testing.T) {
	st := newTestStore(t)
	eng := NewEngine(st, Config{}, nil)

	result, err := eng.Reconcile(context.Background(), "acct-1", []*domain.NormalizedTransaction{
		incoming("id-1", "2024-01-15", -5000, "Coffee Shop"),
		incoming("id-2", "2024-01-16", 100000, "Employer Inc"),
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(result.Added) != 2 || len(result.Updated) != 0 {
		t.Fatalf("added = %d updated = %d, want 2 and 0", len(result.Added), len(result.Updated))
	}

	rows := st.TransactionsByAccount("acct-1")
	if len(rows) != 2 {
		t.Fatalf("ledger rows = %d, want 2", len(rows))
	}
	if rows[0].ImportID != "id-1" || rows[1].ImportID != "id-2" {
		t.Errorf("import IDs = %q, %q", rows[0].ImportID, rows[1].ImportID)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	st := newTestStore(t)
	eng := NewEngine(st, Config{}, nil)
	batch := []*domain.NormalizedTransaction{
		incoming("id-1", "2024-01-15", -5000, "Coffee Shop"),
		incoming("id-2", "2024-01-16", 100000, "Employer Inc"),
	}

	if _, err := eng.Reconcile(context.Background(), "acct-1", batch); err != nil {
		t.Fatalf("first Reconcile() error = %v", err)
	}

	result, err := eng.Reconcile(context.Background(), "acct-1", batch)
	if err != nil {
		t.Fatalf("second Reconcile() error = %v", err)
	}
	if len(result.Added) != 0 || len(result.Updated) != 0 {
		t.Errorf("re-import: added = %d updated = %d, want 0 and 0", len(result.Added), len(result.Updated))
	}
	if rows := st.TransactionsByAccount("acct-1"); len(rows) != 2 {
		t.Errorf("ledger rows = %d after re-import, want 2", len(rows))
	}
}

func TestReconcile_ExactMatchRefreshesPayee(t *testing.T) {
	st := newTestStore(t)
	st.SeedTransaction(&domain.LedgerTransaction{
		AccountID: "acct-1", Date: "2024-01-15", Amount: -5000,
		Payee: "COFFEE SHOP #42", ImportID: "id-1",
	})

	eng := NewEngine(st, Config{}, nil)
	result, err := eng.Reconcile(context.Background(), "acct-1", []*domain.NormalizedTransaction{
		incoming("id-1", "2024-01-15", -5000, "Coffee Shop"),
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(result.Added) != 0 || len(result.Updated) != 1 {
		t.Fatalf("added = %d updated = %d, want 0 and 1", len(result.Added), len(result.Updated))
	}

	rows := st.TransactionsByAccount("acct-1")
	if rows[0].Payee != "Coffee Shop" {
		t.Errorf("payee = %q, want refreshed from import", rows[0].Payee)
	}
}

func TestReconcile_UserEditedRowPreserved(t *testing.T) {
	st := newTestStore(t)
	st.SeedTransaction(&domain.LedgerTransaction{
		AccountID: "acct-1", Date: "2024-01-15", Amount: -5000,
		Payee: "My Favorite Cafe", Notes: "birthday treat",
		ImportID: "id-1", UserEdited: true,
	})

	eng := NewEngine(st, Config{}, nil)
	result, err := eng.Reconcile(context.Background(), "acct-1", []*domain.NormalizedTransaction{
		incoming("id-1", "2024-01-15", -5000, "COFFEE SHOP #42"),
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(result.Updated) != 0 {
		t.Errorf("updated = %d, want edited row untouched", len(result.Updated))
	}

	rows := st.TransactionsByAccount("acct-1")
	if rows[0].Payee != "My Favorite Cafe" {
		t.Errorf("payee = %q, want user edit preserved", rows[0].Payee)
	}
	if rows[0].Notes != "birthday treat" {
		t.Errorf("notes = %q, want user edit preserved", rows[0].Notes)
	}
}

func TestReconcile_EmptyNotesNeverWipe(t *testing.T) {
	st := newTestStore(t)
	st.SeedTransaction(&domain.LedgerTransaction{
		AccountID: "acct-1", Date: "2024-01-15", Amount: -5000,
		Payee: "Coffee Shop", Notes: "existing note", ImportID: "id-1",
	})

	eng := NewEngine(st, Config{}, nil)
	// Incoming row with note import disabled carries empty notes.
	if _, err := eng.Reconcile(context.Background(), "acct-1", []*domain.NormalizedTransaction{
		incoming("id-1", "2024-01-15", -5000, "Coffee Shop"),
	}); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	rows := st.TransactionsByAccount("acct-1")
	if rows[0].Notes != "existing note" {
		t.Errorf("notes = %q, want existing note kept", rows[0].Notes)
	}
}

func TestReconcile_FuzzyAttachesToManualRow(t *testing.T) {
	st := newTestStore(t)
	// Hand-entered row: no ImportID.
	id := st.SeedTransaction(&domain.LedgerTransaction{
		AccountID: "acct-1", Date: "2024-01-15", Amount: -5000,
		Payee: "coffee shop",
	})

	eng := NewEngine(st, Config{}, nil)
	result, err := eng.Reconcile(context.Background(), "acct-1", []*domain.NormalizedTransaction{
		incoming("id-1", "2024-01-15", -5000, "Coffee Shop"),
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(result.Added) != 0 {
		t.Errorf("added = %d, want fuzzy match instead of insert", len(result.Added))
	}
	if len(result.Updated) != 1 || result.Updated[0] != id {
		t.Errorf("updated = %v, want [%d]", result.Updated, id)
	}

	rows := st.TransactionsByAccount("acct-1")
	if len(rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(rows))
	}
	if rows[0].ImportID != "id-1" {
		t.Errorf("import ID = %q, want attached id-1", rows[0].ImportID)
	}
}

func TestReconcile_FuzzyRespectsDateTolerance(t *testing.T) {
	tests := []struct {
		name      string
		tolerance int
		rowDate   string
		wantAdded int
	}{
		{name: "same day default", tolerance: 0, rowDate: "2024-01-15", wantAdded: 0},
		{name: "next day outside default", tolerance: 0, rowDate: "2024-01-16", wantAdded: 1},
		{name: "next day within widened window", tolerance: 2, rowDate: "2024-01-16", wantAdded: 0},
		{name: "four days outside widened window", tolerance: 2, rowDate: "2024-01-19", wantAdded: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			st.SeedTransaction(&domain.LedgerTransaction{
				AccountID: "acct-1", Date: tt.rowDate, Amount: -5000, Payee: "Coffee Shop",
			})

			eng := NewEngine(st, Config{DateToleranceDays: tt.tolerance}, nil)
			result, err := eng.Reconcile(context.Background(), "acct-1", []*domain.NormalizedTransaction{
				incoming("id-1", "2024-01-15", -5000, "Coffee Shop"),
			})
			if err != nil {
				t.Fatalf("Reconcile() error = %v", err)
			}
			if len(result.Added) != tt.wantAdded {
				t.Errorf("added = %d, want %d", len(result.Added), tt.wantAdded)
			}
		})
	}
}

func TestReconcile_FuzzyRequiresEqualAmount(t *testing.T) {
	st := newTestStore(t)
	st.SeedTransaction(&domain.LedgerTransaction{
		AccountID: "acct-1", Date: "2024-01-15", Amount: -5001, Payee: "Coffee Shop",
	})

	eng := NewEngine(st, Config{}, nil)
	result, err := eng.Reconcile(context.Background(), "acct-1", []*domain.NormalizedTransaction{
		incoming("id-1", "2024-01-15", -5000, "Coffee Shop"),
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(result.Added) != 1 {
		t.Errorf("added = %d, want insert when amounts differ by one cent", len(result.Added))
	}
}

func TestReconcile_ClaimOncePerBatch(t *testing.T) {
	st := newTestStore(t)
	st.SeedTransaction(&domain.LedgerTransaction{
		AccountID: "acct-1", Date: "2024-01-15", Amount: -5000, Payee: "Coffee Shop",
	})

	// Two identical incoming rows, one manual candidate: the first attaches,
	// the second must insert rather than double-claim.
	eng := NewEngine(st, Config{}, nil)
	result, err := eng.Reconcile(context.Background(), "acct-1", []*domain.NormalizedTransaction{
		incoming("id-1", "2024-01-15", -5000, "Coffee Shop"),
		incoming("id-2", "2024-01-15", -5000, "Coffee Shop"),
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(result.Updated) != 1 || len(result.Added) != 1 {
		t.Errorf("updated = %d added = %d, want 1 and 1", len(result.Updated), len(result.Added))
	}
	if rows := st.TransactionsByAccount("acct-1"); len(rows) != 2 {
		t.Errorf("ledger rows = %d, want 2", len(rows))
	}
}

func TestReconcile_DuplicateImportIDWithinBatch(t *testing.T) {
	st := newTestStore(t)
	eng := NewEngine(st, Config{}, nil)

	// Same ImportID twice in one file: second occurrence is skipped, not a
	// second insert against the same key.
	result, err := eng.Reconcile(context.Background(), "acct-1", []*domain.NormalizedTransaction{
		incoming("dup", "2024-01-15", -5000, "Coffee Shop"),
		incoming("dup", "2024-01-15", -5000, "Coffee Shop"),
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(result.Added) != 1 {
		t.Errorf("added = %d, want 1", len(result.Added))
	}
	if rows := st.TransactionsByAccount("acct-1"); len(rows) != 1 {
		t.Errorf("ledger rows = %d, want 1", len(rows))
	}
}

func TestReconcile_StorageErrorRollsBack(t *testing.T) {
	st := newTestStore(t)
	eng := NewEngine(st, Config{}, nil)

	// Account mismatch makes the staged insert fail mid-batch.
	bad := incoming("id-2", "2024-01-16", -100, "Other")
	bad.AccountID = "acct-other"

	_, err := eng.Reconcile(context.Background(), "acct-1", []*domain.NormalizedTransaction{
		incoming("id-1", "2024-01-15", -5000, "Coffee Shop"),
		bad,
	})
	if err == nil {
		t.Fatal("Reconcile() with failing insert should error")
	}
	var serr *domain.StorageError
	if !errors.As(err, &serr) {
		t.Errorf("error type = %T, want *domain.StorageError", err)
	}
	if rows := st.TransactionsByAccount("acct-1"); len(rows) != 0 {
		t.Errorf("ledger rows = %d after rollback, want 0", len(rows))
	}
}

func TestPayeeSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{name: "identical", a: "Coffee Shop", b: "Coffee Shop", min: 1, max: 1},
		{name: "case and spacing", a: "COFFEE  SHOP", b: "coffee shop", min: 1, max: 1},
		{name: "close variants", a: "Coffee Shop #42", b: "Coffee Shop", min: 0.7, max: 0.99},
		{name: "unrelated", a: "Coffee Shop", b: "Hardware Depot", min: 0, max: 0.4},
		{name: "one empty", a: "", b: "Coffee Shop", min: 0, max: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PayeeSimilarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("PayeeSimilarity(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}
