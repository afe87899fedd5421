// Package mapper converts between column-keyed rows and canonical
// transactions as described by a format configuration.
package mapper

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/txconv/internal/amount"
	"github.com/rumor-ml/commons.systems/txconv/internal/config"
	"github.com/rumor-ml/commons.systems/txconv/internal/datetime"
	"github.com/rumor-ml/commons.systems/txconv/internal/domain"
)

// Row error kinds. ParseError unwraps to exactly one of these.
var (
	ErrMissingField           = amount.ErrMissingField
	ErrMissingAmount          = amount.ErrMissingAmount
	ErrInvalidAmount          = amount.ErrInvalidAmount
	ErrInvalidTransactionType = amount.ErrInvalidTransactionType
	ErrInvalidDateTime        = errors.New("invalid date/time")
	ErrInvalidStatus          = errors.New("invalid status")
)

// ParseError describes why a row could not become a transaction.
type ParseError struct {
	Kind  error
	Field string
	Value string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Field != "" {
		b.WriteString(" in field ")
		b.WriteString(e.Field)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " (value %q)", e.Value)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func missing(field string) *ParseError {
	return &ParseError{Kind: ErrMissingField, Field: field}
}

// layout returns the date/time layout of a format
func layout(f *config.Format) datetime.Layout {
	return datetime.NewLayout(f.DateTime.DateFormat, f.DateTime.TimeFormat, f.DateTime.Delimiter)
}

// RowToTransaction builds a raw-phase transaction from one row.
func RowToTransaction(row map[string]string, f *config.Format) (domain.Transaction, error) {
	payee, ok := row[f.Payee.FieldName]
	if !ok {
		return domain.Transaction{}, missing(f.Payee.FieldName)
	}

	txnType, magnitude, err := amount.Decode(row, f.Encoding())
	if err != nil {
		var fe *amount.FieldError
		if errors.As(err, &fe) {
			return domain.Transaction{}, &ParseError{Kind: fe.Err, Field: fe.Field, Value: fe.Value}
		}
		return domain.Transaction{}, err
	}

	date, err := parseDate(row, f)
	if err != nil {
		return domain.Transaction{}, err
	}

	status, err := parseStatus(row, f.Status)
	if err != nil {
		return domain.Transaction{}, err
	}

	txn, err := domain.NewTransaction(date, payee, txnType, magnitude, status)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	if f.Memo != nil {
		if memo, ok := row[f.Memo.FieldName]; ok {
			txn.SetMemo(memo)
		}
	}
	if f.Category != nil {
		if category, ok := row[f.Category.FieldName]; ok {
			txn.SetCategory(category)
		}
	}

	return txn, nil
}

func parseDate(row map[string]string, f *config.Format) (time.Time, error) {
	dt := f.DateTime
	date, ok := row[dt.DateField]
	if !ok {
		return time.Time{}, missing(dt.DateField)
	}

	var clock string
	if dt.TimeField != "" {
		if clock, ok = row[dt.TimeField]; !ok {
			return time.Time{}, missing(dt.TimeField)
		}
	}

	t, err := layout(f).Parse(strings.TrimSpace(date), strings.TrimSpace(clock))
	if err != nil {
		field := dt.DateField
		if dt.TimeField != "" {
			field += "+" + dt.TimeField
		}
		return time.Time{}, &ParseError{Kind: ErrInvalidDateTime, Field: field, Err: err}
	}
	return t, nil
}

// parseStatus compares the status column case-sensitively against the
// configured literals. Without a status configuration every row is cleared.
func parseStatus(row map[string]string, sc *config.StatusConfig) (domain.Status, error) {
	if sc == nil {
		return domain.StatusCleared, nil
	}

	raw, ok := row[sc.FieldName]
	if !ok {
		return "", missing(sc.FieldName)
	}
	switch strings.TrimSpace(raw) {
	case sc.ClearedString:
		return domain.StatusCleared, nil
	case sc.PendingString:
		return domain.StatusPending, nil
	}
	return "", &ParseError{
		Kind:  ErrInvalidStatus,
		Field: sc.FieldName,
		Value: raw,
		Err:   fmt.Errorf("expected %q or %q", sc.ClearedString, sc.PendingString),
	}
}

// TransactionToRow renders a transaction as values in the format's field
// order. Fields the format does not map are written as "".
func TransactionToRow(t domain.Transaction, f *config.Format) []string {
	values := make(map[string]string, len(f.FieldOrder))

	l := layout(f)
	values[f.DateTime.DateField] = l.FormatDate(t.Date())
	if f.DateTime.TimeField != "" {
		values[f.DateTime.TimeField] = l.FormatTime(t.Date())
	}

	values[f.Payee.FieldName] = t.Payee()

	if f.Category != nil {
		values[f.Category.FieldName] = t.Category()
	}

	if sc := f.Status; sc != nil {
		values[sc.FieldName] = sc.ClearedString
		if t.Status() == domain.StatusPending {
			values[sc.FieldName] = sc.PendingString
		}
	}

	for field, value := range amount.Encode(t.Type(), t.Amount(), f.Encoding()) {
		values[field] = value
	}

	if f.Memo != nil {
		values[f.Memo.FieldName] = t.Memo()
	}

	out := make([]string, len(f.FieldOrder))
	for i, field := range f.FieldOrder {
		out[i] = values[field]
	}
	return out
}

// Header returns the column names written before the rows of a format.
func Header(f *config.Format) []string {
	return append([]string(nil), f.FieldOrder...)
}
