// Package domain holds the canonical transaction record shared by every
// format, and the enrichment phase it has reached.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// TransactionType is the direction of money movement relative to the account.
type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "Debit"
	TransactionTypeCredit TransactionType = "Credit"
)

// Status is the settlement status of a transaction.
type Status string

const (
	StatusPending Status = "Pending"
	StatusCleared Status = "Cleared"
)

// Phase tracks how far a transaction has progressed through enrichment.
// Normalization and categorization each run exactly once, in that order.
type Phase int

const (
	PhaseRaw Phase = iota
	PhaseNormalized
	PhaseCategorized
)

func (p Phase) String() string {
	switch p {
	case PhaseRaw:
		return "raw"
	case PhaseNormalized:
		return "normalized"
	case PhaseCategorized:
		return "categorized"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrPhaseOrder is returned when an enrichment step is applied to a
// transaction that is not in the phase that step expects.
var ErrPhaseOrder = errors.New("enrichment step applied out of order")

// ValidateTransactionType reports whether t is a known direction.
func ValidateTransactionType(t TransactionType) bool {
	return t == TransactionTypeDebit || t == TransactionTypeCredit
}

// ValidateStatus reports whether s is a known status.
func ValidateStatus(s Status) bool {
	return s == StatusPending || s == StatusCleared
}

// Transaction is one financial event in canonical form.
//
// Transactions are values: enrichment returns a modified copy rather than
// mutating the receiver. The amount is always a non-negative magnitude and
// the direction lives solely in Type.
type Transaction struct {
	date                time.Time
	rawPayeeName        string
	normalizedPayeeID   string
	normalizedPayeeName string
	category            string
	txnType             TransactionType
	amount              decimal.Decimal
	status              Status
	memo                string
	phase               Phase
}

// NewTransaction creates a validated raw-phase transaction. Payee, memo and
// category text is cleaned; the date is stored in UTC.
func NewTransaction(date time.Time, payee string, txnType TransactionType, amount decimal.Decimal, status Status) (Transaction, error) {
	if date.IsZero() {
		return Transaction{}, fmt.Errorf("date cannot be zero")
	}
	if !ValidateTransactionType(txnType) {
		return Transaction{}, fmt.Errorf("invalid transaction type %q", txnType)
	}
	if !ValidateStatus(status) {
		return Transaction{}, fmt.Errorf("invalid status %q", status)
	}
	if amount.IsNegative() {
		return Transaction{}, fmt.Errorf("amount must be non-negative, got %s", amount.String())
	}

	return Transaction{
		date:         date.UTC(),
		rawPayeeName: CleanText(payee),
		txnType:      txnType,
		amount:       amount,
		status:       status,
		phase:        PhaseRaw,
	}, nil
}

// Date returns the transaction timestamp in UTC.
func (t Transaction) Date() time.Time { return t.date }

// RawPayeeName returns the cleaned payee text as read from the source.
func (t Transaction) RawPayeeName() string { return t.rawPayeeName }

// NormalizedPayeeID returns the matched payee id, or "" when unresolved.
func (t Transaction) NormalizedPayeeID() string { return t.normalizedPayeeID }

// NormalizedPayeeName returns the matched payee's display name, or "".
func (t Transaction) NormalizedPayeeName() string { return t.normalizedPayeeName }

// Category returns the assigned category name, or "" when uncategorized.
func (t Transaction) Category() string { return t.category }

// Type returns the transaction direction.
func (t Transaction) Type() TransactionType { return t.txnType }

// Amount returns the non-negative magnitude.
func (t Transaction) Amount() decimal.Decimal { return t.amount }

// Status returns the settlement status.
func (t Transaction) Status() Status { return t.status }

// Memo returns the cleaned memo, or "".
func (t Transaction) Memo() string { return t.memo }

// Phase returns the enrichment phase reached so far.
func (t Transaction) Phase() Phase { return t.phase }

// IsNormalized reports whether a normalizer rule matched this transaction.
func (t Transaction) IsNormalized() bool { return t.normalizedPayeeID != "" }

// Payee returns the normalized payee name when one was resolved, otherwise
// the raw payee text.
func (t Transaction) Payee() string {
	if t.normalizedPayeeName != "" {
		return t.normalizedPayeeName
	}
	return t.rawPayeeName
}

// SetMemo sets the optional memo (cleaned like the payee).
func (t *Transaction) SetMemo(memo string) {
	t.memo = CleanText(memo)
}

// SetCategory sets the optional category name (trimmed).
func (t *Transaction) SetCategory(category string) {
	t.category = strings.TrimSpace(category)
}

// WithNormalizedPayee returns a copy advanced to the normalized phase. An
// empty id records that normalization ran without a match.
func (t Transaction) WithNormalizedPayee(id, name string) (Transaction, error) {
	if t.phase != PhaseRaw {
		return t, fmt.Errorf("normalize %s transaction: %w", t.phase, ErrPhaseOrder)
	}
	t.normalizedPayeeID = id
	t.normalizedPayeeName = name
	t.phase = PhaseNormalized
	return t, nil
}

// WithCategory returns a copy advanced to the categorized phase. An empty
// category leaves any category supplied by the source row in place.
func (t Transaction) WithCategory(category string) (Transaction, error) {
	if t.phase != PhaseNormalized {
		return t, fmt.Errorf("categorize %s transaction: %w", t.phase, ErrPhaseOrder)
	}
	if category != "" {
		t.category = strings.TrimSpace(category)
	}
	t.phase = PhaseCategorized
	return t, nil
}

// CleanText trims surrounding whitespace, collapses embedded line breaks to
// single spaces and applies NFC normalization.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return norm.NFC.String(strings.Join(parts, " "))
}
