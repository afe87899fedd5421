// Package config loads the declarative description of accounts, categories
// and tabular formats, validates it as a whole, and resolves the run-scoped
// view used by the conversion pipeline.
package config

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is a spending/income category.
type Category struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Payee is a canonical counterparty with the categories it may belong to.
type Payee struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	CategoryIDs []string `yaml:"categoryIds"`
}

// MatchType selects how a normalizer rule compares raw payee text.
type MatchType string

const (
	// MatchExact requires the whole payee text to equal the match string
	MatchExact MatchType = "Exact"
	// MatchContains requires the match string to be a substring of the payee text
	MatchContains MatchType = "Contains"
	// MatchRegex requires the pattern to match anywhere in the payee text
	MatchRegex MatchType = "Regex"
)

// Matcher is the comparison half of a normalizer rule.
type Matcher struct {
	Type        MatchType `yaml:"type"`
	MatchString string    `yaml:"matchString"`
}

// NormalizerRule maps raw payee text to a payee id. Rules are evaluated in
// declaration order and the first match wins.
type NormalizerRule struct {
	PayeeID    string  `yaml:"payeeId"`
	Matcher    Matcher `yaml:"matcher"`
	IgnoreCase *bool   `yaml:"ignoreCase"`

	pattern *regexp.Regexp
}

// CaseInsensitive reports whether matching ignores case. Defaults to true.
func (r *NormalizerRule) CaseInsensitive() bool {
	return r.IgnoreCase == nil || *r.IgnoreCase
}

// Pattern returns the compiled expression for Regex rules, nil otherwise.
func (r *NormalizerRule) Pattern() *regexp.Regexp {
	return r.pattern
}

// SortBy names the sort key. Only date is supported.
type SortBy string

// SortOrder is the sort direction.
type SortOrder string

const (
	SortByDate     SortBy    = "date"
	SortAscending  SortOrder = "ascending"
	SortDescending SortOrder = "descending"
)

const (
	defaultSortBy    = SortByDate
	defaultSortOrder = SortAscending
)

// Sort is an output ordering.
type Sort struct {
	By    SortBy    `yaml:"sortBy"`
	Order SortOrder `yaml:"sortOrder"`
}

// DefaultSort is used when neither the run, the account nor the destination
// format specifies one.
var DefaultSort = Sort{By: defaultSortBy, Order: defaultSortOrder}

// ParseSortBy validates a sort key name.
func ParseSortBy(s string) (SortBy, error) {
	if SortBy(s) == SortByDate {
		return SortByDate, nil
	}
	return "", fmt.Errorf("invalid sort key %q (must be 'date')", s)
}

// ParseSortOrder validates a sort direction name.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case SortAscending, SortDescending:
		return SortOrder(s), nil
	}
	return "", fmt.Errorf("invalid sort order %q (must be 'ascending' or 'descending')", s)
}

// withDefaults fills unset parts of a partially specified sort.
func (s Sort) withDefaults() Sort {
	if s.By == "" {
		s.By = defaultSortBy
	}
	if s.Order == "" {
		s.Order = defaultSortOrder
	}
	return s
}

// Account is one source of transactions together with its payee rules.
type Account struct {
	ID               string           `yaml:"id"`
	Name             string           `yaml:"name"`
	FormatID         string           `yaml:"formatId"`
	IgnorePending    *bool            `yaml:"ignorePending"`
	SkipPrompts      *bool            `yaml:"skipPrompts"`
	Sort             *Sort            `yaml:"sort"`
	Payees           []Payee          `yaml:"payees"`
	PayeeNormalizers []NormalizerRule `yaml:"payeeNormalizers"`

	payees map[string]*Payee
}

// Payee looks up one of the account's payees by id.
func (a *Account) Payee(id string) (*Payee, bool) {
	if a.payees == nil {
		for i := range a.Payees {
			if a.Payees[i].ID == id {
				return &a.Payees[i], true
			}
		}
		return nil, false
	}
	p, ok := a.payees[id]
	return p, ok
}

// DataFormat is the file encoding of a format's rows.
type DataFormat string

const (
	DataFormatCSV DataFormat = "csv"
	DataFormatOFX DataFormat = "ofx"
)

// Writable reports whether rows of this encoding can be produced on export.
func (d DataFormat) Writable() bool {
	return d == DataFormatCSV
}

// DateTimeConfig names the columns and strftime-style formats that carry a
// transaction's timestamp.
type DateTimeConfig struct {
	DateField  string  `yaml:"dateField"`
	DateFormat string  `yaml:"dateFormat"`
	TimeField  string  `yaml:"timeField"`
	TimeFormat string  `yaml:"timeFormat"`
	Delimiter  *string `yaml:"dateTimeDeliminator"`
}

// FieldConfig names a single column.
type FieldConfig struct {
	FieldName string `yaml:"fieldName"`
}

// StatusConfig names the status column and the literals that encode it.
type StatusConfig struct {
	FieldName     string `yaml:"fieldName"`
	PendingString string `yaml:"pendingString"`
	ClearedString string `yaml:"clearedString"`
}

// AmountEncoding is how a format represents money and direction. It is one
// of SingleAmountField, SeparateDebitCreditFields or
// TransactionTypeAndAmountFields.
type AmountEncoding interface {
	// Fields lists the column names the encoding reads and writes.
	Fields() []string
	encodingName() string
}

// SingleAmountField carries a signed amount in one column.
type SingleAmountField struct {
	FieldName       string `yaml:"fieldName"`
	DebitIsNegative bool   `yaml:"debitIsNegative"`
}

// SeparateDebitCreditFields carries the magnitude in one of two columns.
type SeparateDebitCreditFields struct {
	DebitField  string `yaml:"debitField"`
	CreditField string `yaml:"creditField"`
}

// TransactionTypeAndAmountFields carries the magnitude in one column and the
// direction as a literal in another.
type TransactionTypeAndAmountFields struct {
	AmountField          string `yaml:"amountField"`
	TransactionTypeField string `yaml:"transactionTypeField"`
	CreditString         string `yaml:"creditString"`
	DebitString          string `yaml:"debitString"`
	IncludeDebitSign     bool   `yaml:"includeDebitSign"`
}

func (e SingleAmountField) Fields() []string { return []string{e.FieldName} }
func (e SingleAmountField) encodingName() string { return "SingleAmountField" }

func (e SeparateDebitCreditFields) Fields() []string { return []string{e.DebitField, e.CreditField} }
func (e SeparateDebitCreditFields) encodingName() string { return "SeparateDebitCreditFields" }

func (e TransactionTypeAndAmountFields) Fields() []string {
	return []string{e.AmountField, e.TransactionTypeField}
}
func (e TransactionTypeAndAmountFields) encodingName() string { return "TransactionTypeAndAmountFields" }

// AmountConfig wraps the encoding selected by the document's "type" key.
type AmountConfig struct {
	Encoding AmountEncoding
}

// UnmarshalYAML decodes the variant named by "type".
func (c *AmountConfig) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}

	var err error
	switch head.Type {
	case "SingleAmountField":
		c.Encoding, err = decodeEncoding[SingleAmountField](node)
	case "SeparateDebitCreditFields":
		c.Encoding, err = decodeEncoding[SeparateDebitCreditFields](node)
	case "TransactionTypeAndAmountFields":
		c.Encoding, err = decodeEncoding[TransactionTypeAndAmountFields](node)
	case "":
		return fmt.Errorf("line %d: amountConfig requires a type", node.Line)
	default:
		return fmt.Errorf("line %d: unknown amount encoding type %q (must be SingleAmountField, SeparateDebitCreditFields or TransactionTypeAndAmountFields)", node.Line, head.Type)
	}
	return err
}

// decodeEncoding decodes one amount variant. node.Decode does not inherit the
// document decoder's KnownFields setting, so keys are checked here against
// the variant's yaml tags.
func decodeEncoding[T AmountEncoding](node *yaml.Node) (T, error) {
	var e T
	if node.Kind == yaml.MappingNode {
		known := map[string]bool{"type": true}
		rt := reflect.TypeOf(e)
		for i := 0; i < rt.NumField(); i++ {
			name, _, _ := strings.Cut(rt.Field(i).Tag.Get("yaml"), ",")
			known[name] = true
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if !known[key.Value] {
				return e, fmt.Errorf("line %d: field %s not found in amount encoding %s", key.Line, key.Value, e.encodingName())
			}
		}
	}
	if err := node.Decode(&e); err != nil {
		return e, err
	}
	return e, nil
}

// Format describes one tabular layout.
type Format struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name"`
	DataFormat    DataFormat     `yaml:"dataFormat"`
	IncludeHeader *bool          `yaml:"includeHeader"`
	Sort          *Sort          `yaml:"sort"`
	FieldOrder    []string       `yaml:"fieldOrder"`
	DateTime      DateTimeConfig `yaml:"dateTimeConfig"`
	Payee         FieldConfig    `yaml:"payeeConfig"`
	Amount        AmountConfig   `yaml:"amountConfig"`
	Status        *StatusConfig  `yaml:"statusConfig"`
	Memo          *FieldConfig   `yaml:"memoConfig"`
	Category      *FieldConfig   `yaml:"categoryConfig"`
}

// Encoding returns the format's amount encoding.
func (f *Format) Encoding() AmountEncoding {
	return f.Amount.Encoding
}

// Document is the whole configuration file.
type Document struct {
	Categories []Category `yaml:"categories"`
	Accounts   []Account  `yaml:"accounts"`
	Formats    []Format   `yaml:"formats"`

	categories map[string]*Category
	accounts   map[string]*Account
	formats    map[string]*Format
}

// Account looks up an account by id.
func (d *Document) Account(id string) (*Account, bool) {
	a, ok := d.accounts[id]
	return a, ok
}

// Format looks up a format by id.
func (d *Document) Format(id string) (*Format, bool) {
	f, ok := d.formats[id]
	return f, ok
}

// Category looks up a category by id.
func (d *Document) Category(id string) (*Category, bool) {
	c, ok := d.categories[id]
	return c, ok
}

// CategoryNames returns the set of declared category display names.
func (d *Document) CategoryNames() map[string]bool {
	names := make(map[string]bool, len(d.Categories))
	for _, c := range d.Categories {
		names[c.Name] = true
	}
	return names
}
