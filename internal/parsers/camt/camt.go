// Package camt provides CAMT.053 (ISO 20022 bank-to-customer statement)
// XML parsing.
package camt

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/mwhitmer/bankmerge/internal/domain"
	"github.com/mwhitmer/bankmerge/internal/parser"
)

// Parser implements CAMT.053 parsing with a stateless design, safe for
// concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared CAMT parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "camt"
}

// CanParse checks for the .xml extension and CAMT.053 markers in the header.
// The namespace declaration appears in the first few hundred bytes of any
// schema-conformant file, so a header peek is sufficient.
func (p *Parser) CanParse(path string, header []byte) bool {
	if strings.ToLower(filepath.Ext(path)) != ".xml" {
		return false
	}
	headerStr := string(header)
	return strings.Contains(headerStr, "camt.053") ||
		strings.Contains(headerStr, "<BkToCstmrStmt")
}

// document mirrors the subset of the CAMT.053 schema this parser reads.
type document struct {
	XMLName   xml.Name `xml:"Document"`
	Statement struct {
		Statements []statement `xml:"Stmt"`
	} `xml:"BkToCstmrStmt"`
}

type statement struct {
	Entries []entry `xml:"Ntry"`
}

type entry struct {
	Amount struct {
		Currency string `xml:"Ccy,attr"`
		Value    string `xml:",chardata"`
	} `xml:"Amt"`
	CreditDebit string `xml:"CdtDbtInd"`
	BookingDate struct {
		Date string `xml:"Dt"`
	} `xml:"BookgDt"`
	ServicerRef    string `xml:"AcctSvcrRef"`
	AdditionalInfo string `xml:"AddtlNtryInf"`
	Details        struct {
		Transactions []txDetails `xml:"TxDtls"`
	} `xml:"NtryDtls"`
}

type txDetails struct {
	Refs struct {
		EndToEndID  string `xml:"EndToEndId"`
		ServicerRef string `xml:"AcctSvcrRef"`
	} `xml:"Refs"`
	Parties struct {
		Creditor struct {
			Name string `xml:"Nm"`
		} `xml:"Cdtr"`
		Debtor struct {
			Name string `xml:"Nm"`
		} `xml:"Dbtr"`
	} `xml:"RltdPties"`
	Remittance struct {
		Unstructured []string `xml:"Ustrd"`
	} `xml:"RmtInf"`
}

// Parse extracts raw records from a CAMT.053 file. Booking dates are already
// ISO calendar dates, so the normalizer needs no date pattern. Entry amounts
// are unsigned in the schema; the CdtDbtInd indicator resolves the sign.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*parser.Result, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CAMT content: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var doc document
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse CAMT.053 file (%d bytes): %w", len(content), err)
	}
	if len(doc.Statement.Statements) == 0 {
		return nil, fmt.Errorf("no statement (BkToCstmrStmt/Stmt) found in CAMT.053 file")
	}

	result := &parser.Result{}
	index := 0
	for _, stmt := range doc.Statement.Statements {
		for _, e := range stmt.Entries {
			rec, err := extractRecord(e)
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

// extractRecord converts one statement entry into a RawRecord.
func extractRecord(e entry) (*parser.RawRecord, error) {
	amount := strings.TrimSpace(e.Amount.Value)
	if amount == "" {
		return nil, fmt.Errorf("entry missing amount")
	}
	date := strings.TrimSpace(e.BookingDate.Date)
	if date == "" {
		return nil, fmt.Errorf("entry missing booking date")
	}

	var signed string
	switch e.CreditDebit {
	case "CRDT":
		signed = amount
	case "DBIT":
		signed = "-" + amount
	default:
		return nil, fmt.Errorf("entry has unknown credit/debit indicator %q", e.CreditDebit)
	}

	payee, memo, sourceID := detailFields(e)
	if payee == "" {
		return nil, fmt.Errorf("entry missing party name and remittance info")
	}
	if sourceID == "" {
		sourceID = strings.TrimSpace(e.ServicerRef)
	}

	return &parser.RawRecord{
		Date:     date,
		Amount:   signed,
		Payee:    payee,
		Memo:     memo,
		SourceID: sourceID,
	}, nil
}

// detailFields pulls payee, memo and reference out of the first TxDtls block.
// The counterparty depends on direction: the creditor received a debit, the
// debtor sent a credit.
func detailFields(e entry) (payee, memo, sourceID string) {
	if len(e.Details.Transactions) > 0 {
		tx := e.Details.Transactions[0]
		if e.CreditDebit == "DBIT" {
			payee = strings.TrimSpace(tx.Parties.Creditor.Name)
		} else {
			payee = strings.TrimSpace(tx.Parties.Debtor.Name)
		}
		memo = strings.TrimSpace(strings.Join(tx.Remittance.Unstructured, " "))
		sourceID = strings.TrimSpace(tx.Refs.EndToEndID)
		if sourceID == "" || sourceID == "NOTPROVIDED" {
			sourceID = strings.TrimSpace(tx.Refs.ServicerRef)
		}
	}
	if payee == "" {
		payee = strings.TrimSpace(e.AdditionalInfo)
	}
	if payee == "" && memo != "" {
		payee = memo
	}
	return payee, memo, sourceID
}
