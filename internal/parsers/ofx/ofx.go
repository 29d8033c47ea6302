// Package ofx provides OFX and QFX statement parsing on top of ofxgo.
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/mwhitmer/bankmerge/internal/domain"
	"github.com/mwhitmer/bankmerge/internal/parser"
)

// Parser implements OFX/QFX parsing with a stateless design. Safe for
// concurrent use; all behavior is determined by the file content.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared OFX parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "ofx"
}

// CanParse checks extension (.ofx or .qfx, case-insensitive) and the header
// for OFX markers, covering both v1 SGML and v2 XML variants.
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	headerUpper := strings.ToUpper(string(header))
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Parse extracts raw records from an OFX/QFX file. The FITID of every
// transaction is carried as the record's SourceID; dates are emitted in
// YYYY-MM-DD and amounts with two decimal places, so the normalizer needs no
// date pattern for this format.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*parser.Result, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content: %w", err)
	}

	// ofxgo.ParseResponse does not support context cancellation, so this
	// only catches cancellation between read and parse.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file (%d bytes): %w", len(content), err)
	}

	tranLists := make([]*ofxgo.TransactionList, 0, 2)
	for _, msg := range response.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected bank statement type %T", msg)
		}
		if stmt.BankTranList != nil {
			tranLists = append(tranLists, stmt.BankTranList)
		}
	}
	for _, msg := range response.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected credit card statement type %T", msg)
		}
		if stmt.BankTranList != nil {
			tranLists = append(tranLists, stmt.BankTranList)
		}
	}

	if len(tranLists) == 0 {
		return nil, fmt.Errorf("no supported statement type found in OFX file: expected a bank (BANKMSGSRSV1) or credit card (CREDITCARDMSGSRSV1) statement")
	}

	result := &parser.Result{}
	index := 0
	for _, list := range tranLists {
		for _, txn := range list.Transactions {
			rec, err := extractRecord(txn)
			if err != nil {
				result.Errors = append(result.Errors, domain.RecordError{
					Record:  index,
					Message: err.Error(),
				})
			} else {
				rec.Index = index
				result.Records = append(result.Records, *rec)
			}
			index++
		}
	}

	return result, nil
}

// extractRecord converts one OFX transaction into a RawRecord.
func extractRecord(txn ofxgo.Transaction) (*parser.RawRecord, error) {
	id := strings.TrimSpace(txn.FiTID.String())

	// Posted date, falling back to user date.
	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return nil, fmt.Errorf("transaction %s missing both posted date and user date", id)
	}

	// Name, falling back to Memo.
	payee := strings.TrimSpace(txn.Name.String())
	memo := strings.TrimSpace(txn.Memo.String())
	if payee == "" {
		payee = memo
	}
	if payee == "" {
		return nil, fmt.Errorf("transaction %s missing both name and memo fields", id)
	}

	return &parser.RawRecord{
		Date:     date.Format(domain.DateLayout),
		Amount:   txn.TrnAmt.FloatString(2),
		Payee:    payee,
		Memo:     memo,
		SourceID: id,
	}, nil
}
