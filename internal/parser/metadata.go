package parser

import (
	"fmt"
	"time"
)

// StdinPath is the display path used for rows read from standard input
const StdinPath = "<stdin>"

// Metadata contains context about the file being parsed.
//
// Create instances using NewMetadata(filePath, detectedAt). The constructor
// validates required fields so metadata is always in a valid state.
type Metadata struct {
	filePath   string
	accountID  string // Configured account the file belongs to
	detectedAt time.Time
}

// NewMetadata creates a new Metadata instance with validated required fields.
// Returns an error if filePath is empty or detectedAt is zero.
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

// FilePath returns the file path, or StdinPath
func (m *Metadata) FilePath() string {
	return m.filePath
}

// AccountID returns the configured account id, empty when not set
func (m *Metadata) AccountID() string {
	return m.accountID
}

// DetectedAt returns the timestamp when the file was picked up
func (m *Metadata) DetectedAt() time.Time {
	return m.detectedAt
}

// SetAccountID sets the configured account id
func (m *Metadata) SetAccountID(accountID string) {
	m.accountID = accountID
}

// Describe returns a short "path (account)" label for error messages
func (m *Metadata) Describe() string {
	if m == nil {
		return "unknown file"
	}
	if m.accountID == "" {
		return m.filePath
	}
	return fmt.Sprintf("%s (account %s)", m.filePath, m.accountID)
}
