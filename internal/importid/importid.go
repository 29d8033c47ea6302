// Package importid derives the stable per-account deduplication key for
// normalized transactions via SHA256 content fingerprinting.
package importid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mwhitmer/bankmerge/internal/domain"
	"github.com/mwhitmer/bankmerge/internal/normalize"
)

// Fingerprint creates a SHA256 hash of account, date, amount, and payee.
// Format: SHA256("{accountID}|{date}|{amount}|{normalizedPayee}").
// The account is part of the input, so identical content in two different
// accounts never collides. Payee is normalized (lowercase, trimmed) so that
// cosmetic differences in source casing do not change the key.
func Fingerprint(accountID, date string, amount int64, payee string) string {
	normalizedPayee := strings.ToLower(strings.TrimSpace(payee))
	input := fmt.Sprintf("%s|%s|%s|%s", accountID, date, normalize.FormatAmount(amount), normalizedPayee)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// Assign computes ImportID for every transaction, in file order.
//
// A native source ID (e.g. OFX FITID) is used verbatim; it is already unique
// within the account. Otherwise the content fingerprint is suffixed with an
// occurrence counter: the first transaction with a given fingerprint gets
// "-0", the second "-1", and so on. Two distinct transactions with identical
// visible fields therefore get distinct keys, while re-importing the same
// file reproduces the same keys in the same order.
func Assign(txns []*domain.NormalizedTransaction) {
	occurrences := make(map[string]int)

	for _, txn := range txns {
		if txn.SourceID != "" {
			txn.ImportID = txn.SourceID
			continue
		}

		fp := Fingerprint(txn.AccountID, txn.Date, txn.Amount, txn.Payee)
		n := occurrences[fp]
		occurrences[fp] = n + 1
		txn.ImportID = fmt.Sprintf("%s-%d", fp, n)
	}
}
