// Package validate collects validation issues for configuration documents and
// transaction batches so they can be reported together.
package validate

import (
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/txconv/internal/domain"
)

// ValidationResult contains all validation errors and warnings found in one pass
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// ValidationError represents a validation error
type ValidationError struct {
	Entity  string // "account", "format", "category", "payee", "normalizer", "transaction"
	ID      string
	Field   string
	Value   string
	Message string
}

// ValidationWarning represents a non-critical validation issue
type ValidationWarning struct {
	Entity  string
	ID      string
	Field   string
	Value   string
	Message string
}

func (e ValidationError) String() string {
	return describe(e.Entity, e.ID, e.Field, e.Message)
}

func (w ValidationWarning) String() string {
	return describe(w.Entity, w.ID, w.Field, w.Message)
}

func describe(entity, id, field, message string) string {
	var b strings.Builder
	b.WriteString(entity)
	if id != "" {
		fmt.Fprintf(&b, " [%s]", id)
	}
	if field != "" {
		fmt.Fprintf(&b, " %s", field)
	}
	b.WriteString(": ")
	b.WriteString(message)
	return b.String()
}

// NewResult creates an empty result
func NewResult() *ValidationResult {
	return &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}
}

// AddError records a validation error
func (r *ValidationResult) AddError(entity, id, field, value, message string) {
	r.Errors = append(r.Errors, ValidationError{
		Entity:  entity,
		ID:      id,
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// AddWarning records a non-critical issue
func (r *ValidationResult) AddWarning(entity, id, field, value, message string) {
	r.Warnings = append(r.Warnings, ValidationWarning{
		Entity:  entity,
		ID:      id,
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// HasErrors reports whether any error was recorded
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Err returns nil when the result has no errors, otherwise an *Error listing
// every recorded error.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return &Error{Errors: append([]ValidationError(nil), r.Errors...)}
}

// Error is the error form of a failed validation pass
type Error struct {
	Errors []ValidationError
}

func (e *Error) Error() string {
	lines := make([]string, 0, len(e.Errors)+1)
	lines = append(lines, fmt.Sprintf("validation failed with %d error(s):", len(e.Errors)))
	for _, ve := range e.Errors {
		lines = append(lines, "  - "+ve.String())
	}
	return strings.Join(lines, "\n")
}

// ValidateTransactions checks a batch about to be exported. Broken invariants
// are errors; unresolved payees, missing categories and categories that are
// not in knownCategories are warnings. A nil knownCategories skips that check.
func ValidateTransactions(txns []domain.Transaction, knownCategories map[string]bool) *ValidationResult {
	result := NewResult()

	for i, txn := range txns {
		id := fmt.Sprintf("#%d", i+1)

		if txn.Date().IsZero() {
			result.AddError("transaction", id, "Date", "", "transaction date cannot be zero")
		}
		if txn.Amount().IsNegative() {
			result.AddError("transaction", id, "Amount", txn.Amount().String(),
				fmt.Sprintf("amount must be non-negative, got %s", txn.Amount().String()))
		}
		if !domain.ValidateTransactionType(txn.Type()) {
			result.AddError("transaction", id, "Type", string(txn.Type()),
				fmt.Sprintf("invalid transaction type: %s", txn.Type()))
		}
		if !domain.ValidateStatus(txn.Status()) {
			result.AddError("transaction", id, "Status", string(txn.Status()),
				fmt.Sprintf("invalid status: %s", txn.Status()))
		}

		if !txn.IsNormalized() {
			result.AddWarning("transaction", id, "Payee", txn.RawPayeeName(), "payee was not normalized")
		}
		switch {
		case txn.Category() == "":
			result.AddWarning("transaction", id, "Category", "", "transaction has no category")
		case knownCategories != nil && !knownCategories[txn.Category()]:
			result.AddWarning("transaction", id, "Category", txn.Category(),
				fmt.Sprintf("category %q is not declared in the configuration", txn.Category()))
		}
	}

	return result
}
