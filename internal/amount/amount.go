// Package amount parses and renders monetary text and translates between the
// configurable column encodings and a (direction, magnitude) pair.
package amount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
	"github.com/rumor-ml/commons.systems/txconv/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrMissingField means a configured column is absent from the row
	ErrMissingField = errors.New("missing field")
	// ErrMissingAmount means no amount column carried a value
	ErrMissingAmount = errors.New("missing amount")
	// ErrInvalidAmount means an amount value could not be parsed
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidTransactionType means a type literal matched neither configured string
	ErrInvalidTransactionType = errors.New("invalid transaction type")
)

// FieldError ties one of the sentinel errors to the column and value that
// caused it.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Field)
	}
	return fmt.Sprintf("%v: %s=%q", e.Err, e.Field, e.Value)
}

func (e *FieldError) Unwrap() error { return e.Err }

var symbols = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", "¥", "", " ", "")

// Parse reads a decimal amount. Currency symbols and thousands separators are
// ignored, and accounting-style parentheses mean negative.
func Parse(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		negative = true
		clean = clean[1 : len(clean)-1]
	}
	clean = symbols.Replace(clean)
	if clean == "" {
		return decimal.Zero, fmt.Errorf("empty amount %q", s)
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cannot parse amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// Format renders an amount with exactly two decimals and no grouping.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Decode reads the direction and non-negative magnitude from a row.
func Decode(row map[string]string, enc config.AmountEncoding) (domain.TransactionType, decimal.Decimal, error) {
	switch e := enc.(type) {
	case config.SingleAmountField:
		value, err := requiredAmount(row, e.FieldName)
		if err != nil {
			return "", decimal.Zero, err
		}
		negativeType, positiveType := domain.TransactionTypeCredit, domain.TransactionTypeDebit
		if e.DebitIsNegative {
			negativeType, positiveType = domain.TransactionTypeDebit, domain.TransactionTypeCredit
		}
		if value.IsNegative() {
			return negativeType, value.Abs(), nil
		}
		return positiveType, value, nil

	case config.SeparateDebitCreditFields:
		return decodeSeparate(row, e)

	case config.TransactionTypeAndAmountFields:
		value, err := requiredAmount(row, e.AmountField)
		if err != nil {
			return "", decimal.Zero, err
		}
		literal, ok := row[e.TransactionTypeField]
		if !ok {
			return "", decimal.Zero, &FieldError{Field: e.TransactionTypeField, Err: ErrMissingField}
		}
		switch strings.TrimSpace(literal) {
		case e.CreditString:
			return domain.TransactionTypeCredit, value.Abs(), nil
		case e.DebitString:
			return domain.TransactionTypeDebit, value.Abs(), nil
		}
		return "", decimal.Zero, &FieldError{Field: e.TransactionTypeField, Value: literal, Err: ErrInvalidTransactionType}
	}

	return "", decimal.Zero, fmt.Errorf("unsupported amount encoding %T", enc)
}

// decodeSeparate checks the debit column first. A zero in one column yields
// to a non-zero value in the other, since some exports fill the unused side
// with 0.00.
func decodeSeparate(row map[string]string, e config.SeparateDebitCreditFields) (domain.TransactionType, decimal.Decimal, error) {
	type side struct {
		field string
		typ   domain.TransactionType
	}
	sides := []side{
		{e.DebitField, domain.TransactionTypeDebit},
		{e.CreditField, domain.TransactionTypeCredit},
	}

	found := false
	var firstType domain.TransactionType
	for _, s := range sides {
		raw := strings.TrimSpace(row[s.field])
		if raw == "" {
			continue
		}
		value, err := Parse(raw)
		if err != nil {
			return "", decimal.Zero, &FieldError{Field: s.field, Value: raw, Err: ErrInvalidAmount}
		}
		if !value.IsZero() {
			return s.typ, value.Abs(), nil
		}
		if !found {
			found, firstType = true, s.typ
		}
	}

	if found {
		return firstType, decimal.Zero, nil
	}
	return "", decimal.Zero, &FieldError{Field: e.DebitField + "/" + e.CreditField, Err: ErrMissingAmount}
}

func requiredAmount(row map[string]string, field string) (decimal.Decimal, error) {
	raw, ok := row[field]
	if !ok {
		return decimal.Zero, &FieldError{Field: field, Err: ErrMissingField}
	}
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, &FieldError{Field: field, Err: ErrMissingAmount}
	}
	value, err := Parse(raw)
	if err != nil {
		return decimal.Zero, &FieldError{Field: field, Value: raw, Err: ErrInvalidAmount}
	}
	return value, nil
}

// Encode renders a direction and magnitude as column values.
func Encode(typ domain.TransactionType, magnitude decimal.Decimal, enc config.AmountEncoding) map[string]string {
	debit := typ == domain.TransactionTypeDebit

	switch e := enc.(type) {
	case config.SingleAmountField:
		value := magnitude
		if debit == e.DebitIsNegative {
			value = magnitude.Neg()
		}
		return map[string]string{e.FieldName: Format(value)}

	case config.SeparateDebitCreditFields:
		if debit {
			return map[string]string{e.DebitField: Format(magnitude), e.CreditField: ""}
		}
		return map[string]string{e.DebitField: "", e.CreditField: Format(magnitude)}

	case config.TransactionTypeAndAmountFields:
		value, literal := magnitude, e.CreditString
		if debit {
			literal = e.DebitString
			if e.IncludeDebitSign {
				value = magnitude.Neg()
			}
		}
		return map[string]string{e.AmountField: Format(value), e.TransactionTypeField: literal}
	}

	return map[string]string{}
}
