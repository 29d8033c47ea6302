// Package firestore provides a Firestore-backed ledger store.
package firestore

import (
	"context"
	"fmt"
	"strconv"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/mwhitmer/bankmerge/internal/domain"
	"github.com/mwhitmer/bankmerge/internal/store"
)

const (
	accountsCollection     = "accounts"
	transactionsCollection = "transactions"
	counterDoc             = "counters/transactions"
)

// Store implements store.Store on Firestore. Row identities are allocated
// from a counter document so they stay int64 like the SQLite store's rowids.
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore-backed store via the Firebase app
// initializer. credentialsFile may be empty to use Application Default
// Credentials.
func NewStore(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	conf := &firebase.Config{ProjectID: projectID}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

// Close closes the Firestore client.
func (s *Store) Close() error {
	return s.client.Close()
}

type accountDoc struct {
	ID   string `firestore:"id"`
	Name string `firestore:"name"`
}

type transactionDoc struct {
	ID            int64  `firestore:"id"`
	AccountID     string `firestore:"accountId"`
	Date          string `firestore:"date"`
	Amount        int64  `firestore:"amount"`
	ImportedPayee string `firestore:"importedPayee"`
	Payee         string `firestore:"payee"`
	Notes         string `firestore:"notes"`
	ImportID      string `firestore:"importId"`
	UserEdited    bool   `firestore:"userEdited"`
}

type counter struct {
	Next int64 `firestore:"next"`
}

// Account looks up an account by ID.
func (s *Store) Account(ctx context.Context, id string) (*store.Account, error) {
	snap, err := s.client.Collection(accountsCollection).Doc(id).Get(ctx)
	if snap != nil && !snap.Exists() {
		return nil, store.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	var doc accountDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode account %s: %w", id, err)
	}
	return &store.Account{ID: doc.ID, Name: doc.Name}, nil
}

// InsertAccount creates an account.
func (s *Store) InsertAccount(ctx context.Context, acct *store.Account) error {
	if acct == nil || acct.ID == "" {
		return fmt.Errorf("account ID cannot be empty")
	}
	_, err := s.client.Collection(accountsCollection).Doc(acct.ID).
		Create(ctx, accountDoc{ID: acct.ID, Name: acct.Name})
	if err != nil {
		return fmt.Errorf("failed to insert account %s: %w", acct.ID, err)
	}
	return nil
}

// WithinBatch runs fn inside one Firestore transaction. Firestore requires
// all reads before writes; the engine reads the candidate pool first and the
// identity counter is read up front here, so the constraint holds.
func (s *Store) WithinBatch(ctx context.Context, accountID string, fn func(store.Batch) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		counterRef := s.client.Doc(counterDoc)

		var c counter
		snap, err := tx.Get(counterRef)
		if err != nil && (snap == nil || snap.Exists()) {
			return fmt.Errorf("failed to read identity counter: %w", err)
		}
		if snap != nil && snap.Exists() {
			if err := snap.DataTo(&c); err != nil {
				return fmt.Errorf("failed to decode identity counter: %w", err)
			}
		}
		if c.Next == 0 {
			c.Next = 1
		}

		b := &batch{
			store:     s,
			tx:        tx,
			accountID: accountID,
			nextID:    c.Next,
		}
		if err := fn(b); err != nil {
			return err
		}

		if b.nextID != c.Next {
			if err := tx.Set(counterRef, counter{Next: b.nextID}); err != nil {
				return fmt.Errorf("failed to advance identity counter: %w", err)
			}
		}
		return nil
	})
}

type batch struct {
	store     *Store
	tx        *firestore.Transaction
	accountID string
	nextID    int64
}

func (b *batch) Transactions(_ context.Context) ([]*domain.LedgerTransaction, error) {
	query := b.store.client.Collection(transactionsCollection).
		Where("accountId", "==", b.accountID)

	var txns []*domain.LedgerTransaction
	iter := b.tx.Documents(query)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate transactions: %w", err)
		}
		var doc transactionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode transaction %s: %w", snap.Ref.ID, err)
		}
		txns = append(txns, &domain.LedgerTransaction{
			ID:            doc.ID,
			AccountID:     doc.AccountID,
			Date:          doc.Date,
			Amount:        doc.Amount,
			ImportedPayee: doc.ImportedPayee,
			Payee:         doc.Payee,
			Notes:         doc.Notes,
			ImportID:      doc.ImportID,
			UserEdited:    doc.UserEdited,
		})
	}
	return txns, nil
}

func (b *batch) Insert(_ context.Context, txn *domain.LedgerTransaction) (int64, error) {
	if txn.AccountID != b.accountID {
		return 0, fmt.Errorf("transaction account %s does not match batch account %s", txn.AccountID, b.accountID)
	}
	id := b.nextID
	b.nextID++

	ref := b.store.client.Collection(transactionsCollection).Doc(strconv.FormatInt(id, 10))
	if err := b.tx.Create(ref, toDoc(id, txn)); err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return id, nil
}

func (b *batch) Update(_ context.Context, txn *domain.LedgerTransaction) error {
	ref := b.store.client.Collection(transactionsCollection).Doc(strconv.FormatInt(txn.ID, 10))
	if err := b.tx.Set(ref, toDoc(txn.ID, txn)); err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", txn.ID, err)
	}
	return nil
}

func toDoc(id int64, txn *domain.LedgerTransaction) transactionDoc {
	return transactionDoc{
		ID:            id,
		AccountID:     txn.AccountID,
		Date:          txn.Date,
		Amount:        txn.Amount,
		ImportedPayee: txn.ImportedPayee,
		Payee:         txn.Payee,
		Notes:         txn.Notes,
		ImportID:      txn.ImportID,
		UserEdited:    txn.UserEdited,
	}
}
