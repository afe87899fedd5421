package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rumor-ml/commons.systems/txconv/internal/datetime"
	"github.com/rumor-ml/commons.systems/txconv/internal/validate"
)

// check validates the whole document: identifiers, cross references,
// normalizer patterns and field-order integrity. Regex patterns are compiled
// here and kept on their rules.
func (d *Document) check() *validate.ValidationResult {
	result := validate.NewResult()

	categoryIDs := make(map[string]bool)
	for _, c := range d.Categories {
		if c.ID == "" {
			result.AddError("category", c.ID, "id", "", "category id cannot be empty")
		} else if categoryIDs[c.ID] {
			result.AddError("category", c.ID, "id", c.ID, "duplicate category id")
		}
		if strings.TrimSpace(c.Name) == "" {
			result.AddError("category", c.ID, "name", "", "category name cannot be empty")
		}
		categoryIDs[c.ID] = true
	}

	formatIDs := make(map[string]bool)
	for i := range d.Formats {
		f := &d.Formats[i]
		if f.ID == "" {
			result.AddError("format", f.ID, "id", "", "format id cannot be empty")
		} else if formatIDs[f.ID] {
			result.AddError("format", f.ID, "id", f.ID, "duplicate format id")
		}
		formatIDs[f.ID] = true
		checkFormat(result, f)
	}

	accountIDs := make(map[string]bool)
	for i := range d.Accounts {
		a := &d.Accounts[i]
		if a.ID == "" {
			result.AddError("account", a.ID, "id", "", "account id cannot be empty")
		} else if accountIDs[a.ID] {
			result.AddError("account", a.ID, "id", a.ID, "duplicate account id")
		}
		accountIDs[a.ID] = true

		if !formatIDs[a.FormatID] {
			result.AddError("account", a.ID, "formatId", a.FormatID,
				fmt.Sprintf("references non-existent format: %s", a.FormatID))
		}
		if a.Sort != nil {
			checkSort(result, "account", a.ID, a.Sort)
		}
		checkPayees(result, a, categoryIDs)
	}

	return result
}

func checkSort(result *validate.ValidationResult, entity, id string, s *Sort) {
	if s.By != "" {
		if _, err := ParseSortBy(string(s.By)); err != nil {
			result.AddError(entity, id, "sort.sortBy", string(s.By), err.Error())
		}
	}
	if s.Order != "" {
		if _, err := ParseSortOrder(string(s.Order)); err != nil {
			result.AddError(entity, id, "sort.sortOrder", string(s.Order), err.Error())
		}
	}
}

func checkPayees(result *validate.ValidationResult, a *Account, categoryIDs map[string]bool) {
	payeeIDs := make(map[string]bool)
	for _, p := range a.Payees {
		id := a.ID + "/" + p.ID
		if p.ID == "" {
			result.AddError("payee", id, "id", "", "payee id cannot be empty")
		} else if payeeIDs[p.ID] {
			result.AddError("payee", id, "id", p.ID, "duplicate payee id")
		}
		payeeIDs[p.ID] = true

		if strings.TrimSpace(p.Name) == "" {
			result.AddError("payee", id, "name", "", "payee name cannot be empty")
		}
		for _, cid := range p.CategoryIDs {
			if !categoryIDs[cid] {
				result.AddError("payee", id, "categoryIds", cid,
					fmt.Sprintf("references non-existent category: %s", cid))
			}
		}
	}

	for i := range a.PayeeNormalizers {
		rule := &a.PayeeNormalizers[i]
		id := fmt.Sprintf("%s/%d", a.ID, i)

		if !payeeIDs[rule.PayeeID] {
			result.AddError("normalizer", id, "payeeId", rule.PayeeID,
				fmt.Sprintf("references non-existent payee: %s", rule.PayeeID))
		}
		if rule.Matcher.MatchString == "" {
			result.AddError("normalizer", id, "matcher.matchString", "", "match string cannot be empty")
			continue
		}

		switch rule.Matcher.Type {
		case MatchExact, MatchContains:
		case MatchRegex:
			expr := rule.Matcher.MatchString
			if rule.CaseInsensitive() {
				expr = "(?i)" + expr
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				result.AddError("normalizer", id, "matcher.matchString", rule.Matcher.MatchString,
					fmt.Sprintf("invalid regular expression: %v", err))
				continue
			}
			rule.pattern = re
		default:
			result.AddError("normalizer", id, "matcher.type", string(rule.Matcher.Type),
				fmt.Sprintf("invalid matcher type %q (must be Exact, Contains or Regex)", rule.Matcher.Type))
		}
	}
}

func checkFormat(result *validate.ValidationResult, f *Format) {
	switch f.DataFormat {
	case "", DataFormatCSV, DataFormatOFX:
	default:
		result.AddError("format", f.ID, "dataFormat", string(f.DataFormat),
			fmt.Sprintf("invalid data format %q (must be csv or ofx)", f.DataFormat))
	}
	if f.Sort != nil {
		checkSort(result, "format", f.ID, f.Sort)
	}

	if len(f.FieldOrder) == 0 {
		result.AddError("format", f.ID, "fieldOrder", "", "field order cannot be empty")
	}
	inOrder := make(map[string]bool, len(f.FieldOrder))
	for _, name := range f.FieldOrder {
		if inOrder[name] {
			result.AddError("format", f.ID, "fieldOrder", name, fmt.Sprintf("field %q listed more than once", name))
		}
		inOrder[name] = true
	}

	// referenced reports a configured column name that is missing from the
	// field order. Empty names are reported separately as missing settings.
	referenced := func(field, name, what string) {
		if name == "" {
			result.AddError("format", f.ID, field, "", what+" field name cannot be empty")
			return
		}
		if !inOrder[name] {
			result.AddError("format", f.ID, field, name,
				fmt.Sprintf("%s field name [%s] not included in field order", what, name))
		}
	}

	dt := f.DateTime
	referenced("dateTimeConfig.dateField", dt.DateField, "date")
	if dt.DateFormat == "" {
		result.AddError("format", f.ID, "dateTimeConfig.dateFormat", "", "date format cannot be empty")
	} else if err := datetime.ValidateFormat(dt.DateFormat); err != nil {
		result.AddError("format", f.ID, "dateTimeConfig.dateFormat", dt.DateFormat, err.Error())
	}
	if dt.TimeField != "" {
		referenced("dateTimeConfig.timeField", dt.TimeField, "time")
	}
	if dt.TimeFormat != "" {
		if err := datetime.ValidateFormat(dt.TimeFormat); err != nil {
			result.AddError("format", f.ID, "dateTimeConfig.timeFormat", dt.TimeFormat, err.Error())
		}
	}

	referenced("payeeConfig.fieldName", f.Payee.FieldName, "payee")

	switch enc := f.Amount.Encoding.(type) {
	case nil:
		result.AddError("format", f.ID, "amountConfig", "", "amount config is required")
	case SingleAmountField:
		referenced("amountConfig.fieldName", enc.FieldName, "amount")
	case SeparateDebitCreditFields:
		referenced("amountConfig.debitField", enc.DebitField, "debit")
		referenced("amountConfig.creditField", enc.CreditField, "credit")
		if enc.DebitField != "" && enc.DebitField == enc.CreditField {
			result.AddError("format", f.ID, "amountConfig", enc.DebitField, "debit and credit fields must differ")
		}
	case TransactionTypeAndAmountFields:
		referenced("amountConfig.amountField", enc.AmountField, "amount")
		referenced("amountConfig.transactionTypeField", enc.TransactionTypeField, "transaction type")
		if enc.CreditString == "" || enc.DebitString == "" {
			result.AddError("format", f.ID, "amountConfig", "", "credit and debit strings cannot be empty")
		} else if enc.CreditString == enc.DebitString {
			result.AddError("format", f.ID, "amountConfig", enc.CreditString, "credit and debit strings must differ")
		}
	}

	if f.Status != nil {
		referenced("statusConfig.fieldName", f.Status.FieldName, "status")
		if f.Status.PendingString == "" || f.Status.ClearedString == "" {
			result.AddError("format", f.ID, "statusConfig", "", "pending and cleared strings cannot be empty")
		} else if f.Status.PendingString == f.Status.ClearedString {
			result.AddError("format", f.ID, "statusConfig", f.Status.PendingString, "pending and cleared strings must differ")
		}
	}
	if f.Memo != nil {
		referenced("memoConfig.fieldName", f.Memo.FieldName, "memo")
	}
	if f.Category != nil {
		referenced("categoryConfig.fieldName", f.Category.FieldName, "category")
	}
}
