package parser

import (
	"fmt"
	"time"
)

// Metadata carries context about the file being parsed, used for error
// messages and scan results.
//
// Create instances using NewMetadata(filePath, detectedAt). Optional fields
// can be set after construction.
type Metadata struct {
	filePath   string
	accountID  string // inferred from directory layout, may be empty
	detectedAt time.Time
}

// NewMetadata creates a new Metadata instance with validated required fields.
func NewMetadata(filePath string, detectedAt time.Time) (*Metadata, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if detectedAt.IsZero() {
		return nil, fmt.Errorf("detected time cannot be zero")
	}
	return &Metadata{
		filePath:   filePath,
		detectedAt: detectedAt,
	}, nil
}

// FilePath returns the file path.
func (m *Metadata) FilePath() string { return m.filePath }

// AccountID returns the account inferred from the directory structure.
// Empty when the path didn't match the expected layout; callers must then
// supply the account explicitly.
func (m *Metadata) AccountID() string { return m.accountID }

// DetectedAt returns the timestamp when the file was detected.
func (m *Metadata) DetectedAt() time.Time { return m.detectedAt }

// SetAccountID sets the inferred account.
func (m *Metadata) SetAccountID(accountID string) { m.accountID = accountID }
