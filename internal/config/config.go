package config

import "fmt"

// RowErrorPolicy decides what happens when a source row cannot be mapped.
type RowErrorPolicy string

const (
	// RowErrorAbort stops the run at the first bad row
	RowErrorAbort RowErrorPolicy = "abort"
	// RowErrorSkip logs the bad row and continues with the next one
	RowErrorSkip RowErrorPolicy = "skip"
)

// ParseRowErrorPolicy validates a policy name. An empty name selects abort.
func ParseRowErrorPolicy(s string) (RowErrorPolicy, error) {
	switch RowErrorPolicy(s) {
	case "":
		return RowErrorAbort, nil
	case RowErrorAbort, RowErrorSkip:
		return RowErrorPolicy(s), nil
	}
	return "", fmt.Errorf("invalid row error policy %q (must be 'abort' or 'skip')", s)
}

// Overrides are run-level settings that take precedence over the document.
// Nil fields defer to the document.
type Overrides struct {
	IncludeHeader *bool
	IgnorePending *bool
	SkipPrompts   *bool
	SortBy        *SortBy
	SortOrder     *SortOrder
}

// Merge returns o with every field that is set in other replacing the
// corresponding field of o.
func (o Overrides) Merge(other Overrides) Overrides {
	if other.IncludeHeader != nil {
		o.IncludeHeader = other.IncludeHeader
	}
	if other.IgnorePending != nil {
		o.IgnorePending = other.IgnorePending
	}
	if other.SkipPrompts != nil {
		o.SkipPrompts = other.SkipPrompts
	}
	if other.SortBy != nil {
		o.SortBy = other.SortBy
	}
	if other.SortOrder != nil {
		o.SortOrder = other.SortOrder
	}
	return o
}

// Selection picks the account and destination format for one run.
type Selection struct {
	AccountID string
	// DstFormatID defaults to the account's own format when empty.
	DstFormatID    string
	SrcPath        string
	DstPath        string
	Overrides      Overrides
	RowErrorPolicy RowErrorPolicy
}

// Config is the read-only, run-scoped view of the document consumed by the
// conversion pipeline. All lookups are total once Select has succeeded.
type Config struct {
	doc       *Document
	account   *Account
	srcFormat *Format
	dstFormat *Format
	sel       Selection
}

// Select resolves a run against the document.
func (d *Document) Select(sel Selection) (*Config, error) {
	account, ok := d.Account(sel.AccountID)
	if !ok {
		return nil, fmt.Errorf("unknown account %q", sel.AccountID)
	}

	// Account format references are validated at load time.
	srcFormat, _ := d.Format(account.FormatID)

	dstID := sel.DstFormatID
	if dstID == "" {
		dstID = account.FormatID
	}
	dstFormat, ok := d.Format(dstID)
	if !ok {
		return nil, fmt.Errorf("unknown destination format %q", dstID)
	}
	if !dstFormat.DataFormat.Writable() {
		return nil, fmt.Errorf("destination format %q uses data format %s, which cannot be written", dstID, dstFormat.DataFormat)
	}

	if sel.Overrides.SortBy != nil {
		if _, err := ParseSortBy(string(*sel.Overrides.SortBy)); err != nil {
			return nil, err
		}
	}
	if sel.Overrides.SortOrder != nil {
		if _, err := ParseSortOrder(string(*sel.Overrides.SortOrder)); err != nil {
			return nil, err
		}
	}

	policy, err := ParseRowErrorPolicy(string(sel.RowErrorPolicy))
	if err != nil {
		return nil, err
	}
	sel.RowErrorPolicy = policy

	return &Config{
		doc:       d,
		account:   account,
		srcFormat: srcFormat,
		dstFormat: dstFormat,
		sel:       sel,
	}, nil
}

// Account returns the selected account.
func (c *Config) Account() *Account { return c.account }

// SrcFormat returns the format of the selected account's files.
func (c *Config) SrcFormat() *Format { return c.srcFormat }

// DstFormat returns the output format.
func (c *Config) DstFormat() *Format { return c.dstFormat }

// SrcPath returns the input file or directory, "" for standard input.
func (c *Config) SrcPath() string { return c.sel.SrcPath }

// DstPath returns the output file, "" for standard output.
func (c *Config) DstPath() string { return c.sel.DstPath }

// RowErrorPolicy returns how unmappable rows are handled.
func (c *Config) RowErrorPolicy() RowErrorPolicy { return c.sel.RowErrorPolicy }

// Format looks up any format by id.
func (c *Config) Format(id string) (*Format, bool) { return c.doc.Format(id) }

// Category looks up a category by id.
func (c *Config) Category(id string) (*Category, bool) { return c.doc.Category(id) }

// CategoryNames returns the declared category display names.
func (c *Config) CategoryNames() map[string]bool { return c.doc.CategoryNames() }

// Sort resolves the output ordering: run override, then account default, then
// destination format default, then ascending by date. Sort key and order are
// resolved independently.
func (c *Config) Sort() Sort {
	s := DefaultSort
	switch {
	case c.account.Sort != nil:
		s = c.account.Sort.withDefaults()
	case c.dstFormat.Sort != nil:
		s = c.dstFormat.Sort.withDefaults()
	}

	if o := c.sel.Overrides.SortBy; o != nil {
		s.By = *o
	}
	if o := c.sel.Overrides.SortOrder; o != nil {
		s.Order = *o
	}
	return s
}

// IncludeHeader resolves whether the output starts with a header row: run
// override, then destination format, then false.
func (c *Config) IncludeHeader() bool {
	return firstBool(c.sel.Overrides.IncludeHeader, c.dstFormat.IncludeHeader)
}

// IgnorePending resolves whether pending transactions are dropped: run
// override, then account, then false.
func (c *Config) IgnorePending() bool {
	return firstBool(c.sel.Overrides.IgnorePending, c.account.IgnorePending)
}

// SkipPrompts resolves whether category disambiguation is skipped: run
// override, then account, then false.
func (c *Config) SkipPrompts() bool {
	return firstBool(c.sel.Overrides.SkipPrompts, c.account.SkipPrompts)
}

func firstBool(values ...*bool) bool {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return false
}
