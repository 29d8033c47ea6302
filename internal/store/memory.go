package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/mwhitmer/bankmerge/internal/domain"
)

// MemoryStore is an in-memory Store. Batches stage their mutations on a copy
// of the account's rows and commit by swap, so a failing batch leaves the
// ledger untouched.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	rows     map[string][]*domain.LedgerTransaction // accountID -> rows
	nextID   int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		rows:     make(map[string][]*domain.LedgerTransaction),
		nextID:   1,
	}
}

// Account looks up an account by ID.
func (s *MemoryStore) Account(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *acct
	return &copied, nil
}

// InsertAccount creates an account.
func (s *MemoryStore) InsertAccount(_ context.Context, acct *Account) error {
	if acct == nil || acct.ID == "" {
		return fmt.Errorf("account ID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.ID]; ok {
		return fmt.Errorf("account %s already exists", acct.ID)
	}
	copied := *acct
	s.accounts[acct.ID] = &copied
	return nil
}

// SeedTransaction inserts a row outside any batch, for tests that need
// pre-existing ledger state. Returns the assigned identity.
func (s *MemoryStore) SeedTransaction(txn *domain.LedgerTransaction) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *txn
	copied.ID = s.nextID
	s.nextID++
	s.rows[copied.AccountID] = append(s.rows[copied.AccountID], &copied)
	return copied.ID
}

// TransactionsByAccount returns copies of all rows for an account.
func (s *MemoryStore) TransactionsByAccount(accountID string) []*domain.LedgerTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRows(s.rows[accountID])
}

// WithinBatch runs fn against a staged copy of the account's rows. The store
// mutex is held for the whole batch, serializing writes per account.
func (s *MemoryStore) WithinBatch(_ context.Context, accountID string, fn func(Batch) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &memoryBatch{
		accountID: accountID,
		rows:      copyRows(s.rows[accountID]),
		nextID:    s.nextID,
	}

	if err := fn(staged); err != nil {
		return err
	}

	s.rows[accountID] = staged.rows
	s.nextID = staged.nextID
	return nil
}

type memoryBatch struct {
	accountID string
	rows      []*domain.LedgerTransaction
	nextID    int64
}

func (b *memoryBatch) Transactions(_ context.Context) ([]*domain.LedgerTransaction, error) {
	return copyRows(b.rows), nil
}

func (b *memoryBatch) Insert(_ context.Context, txn *domain.LedgerTransaction) (int64, error) {
	if txn.AccountID != b.accountID {
		return 0, fmt.Errorf("transaction account %s does not match batch account %s", txn.AccountID, b.accountID)
	}
	copied := *txn
	copied.ID = b.nextID
	b.nextID++
	b.rows = append(b.rows, &copied)
	return copied.ID, nil
}

func (b *memoryBatch) Update(_ context.Context, txn *domain.LedgerTransaction) error {
	for i, row := range b.rows {
		if row.ID == txn.ID {
			copied := *txn
			b.rows[i] = &copied
			return nil
		}
	}
	return fmt.Errorf("transaction %d not found in account %s", txn.ID, b.accountID)
}

func copyRows(rows []*domain.LedgerTransaction) []*domain.LedgerTransaction {
	copied := make([]*domain.LedgerTransaction, len(rows))
	for i, row := range rows {
		r := *row
		copied[i] = &r
	}
	return copied
}
