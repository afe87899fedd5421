package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
	"github.com/rumor-ml/commons.systems/txconv/internal/domain"
	"github.com/rumor-ml/commons.systems/txconv/internal/logger"
	"github.com/rumor-ml/commons.systems/txconv/internal/mapper"
	"github.com/rumor-ml/commons.systems/txconv/internal/prompt"
)

const testConfig = `
categories:
  - {id: groceries, name: Groceries}
  - {id: household, name: Household}
  - {id: dining, name: Dining Out}
  - {id: transfer, name: Transfer}
  - {id: income, name: Income}

accounts:
  - id: ally-checking
    name: Ally Checking
    formatId: ally
    payees:
      - {id: ally-savings, name: Ally Savings, categoryIds: [transfer]}
      - {id: employer, name: Employer Payroll, categoryIds: [income]}
      - {id: costco, name: Costco, categoryIds: [groceries, household]}
    payeeNormalizers:
      - payeeId: ally-savings
        matcher: {type: Contains, matchString: "transfer to online savings"}
      - payeeId: employer
        matcher: {type: Regex, matchString: "^ACME CORP (PAYROLL|DIR DEP)"}
      - payeeId: costco
        matcher: {type: Contains, matchString: costco}

  - id: citi-card
    name: Citi Double Cash
    formatId: citi
    skipPrompts: true
    sort: {sortBy: date, sortOrder: descending}
    payees:
      - {id: trader-joes, name: Trader Joe's, categoryIds: [groceries]}
    payeeNormalizers:
      - payeeId: trader-joes
        matcher: {type: Regex, matchString: "TRADER JOE'?S"}

  - id: ally-ofx
    name: Ally Checking (OFX)
    formatId: ofx
    payees:
      - {id: employer, name: Employer Payroll, categoryIds: [income]}
    payeeNormalizers:
      - payeeId: employer
        matcher: {type: Contains, matchString: payroll}

formats:
  - id: ally
    name: Ally Bank
    includeHeader: true
    fieldOrder: [Date, Time, Amount, Type, Description]
    dateTimeConfig: {dateField: Date, dateFormat: "%Y-%m-%d", timeField: Time, timeFormat: "%T"}
    payeeConfig: {fieldName: Description}
    amountConfig:
      type: TransactionTypeAndAmountFields
      amountField: Amount
      transactionTypeField: Type
      creditString: Deposit
      debitString: Withdrawal

  - id: citi
    name: Citi
    includeHeader: true
    fieldOrder: [Status, Date, Description, Debit, Credit]
    dateTimeConfig: {dateField: Date, dateFormat: "%m/%d/%Y"}
    payeeConfig: {fieldName: Description}
    amountConfig: {type: SeparateDebitCreditFields, debitField: Debit, creditField: Credit}
    statusConfig: {fieldName: Status, pendingString: Pending, clearedString: Cleared}

  - id: ofx
    name: OFX download
    dataFormat: ofx
    fieldOrder: [Date, Amount, Type, Name, Memo, FITID]
    dateTimeConfig: {dateField: Date, dateFormat: "%Y-%m-%d"}
    payeeConfig: {fieldName: Name}
    memoConfig: {fieldName: Memo}
    amountConfig: {type: SingleAmountField, fieldName: Amount, debitIsNegative: true}

  - id: sheets
    name: Google Sheets ledger
    includeHeader: false
    sort: {sortBy: date, sortOrder: ascending}
    fieldOrder: [Date, Payee, Category, Debit, Credit, Status, Memo]
    dateTimeConfig: {dateField: Date, dateFormat: "%m/%d/%Y"}
    payeeConfig: {fieldName: Payee}
    categoryConfig: {fieldName: Category}
    memoConfig: {fieldName: Memo}
    amountConfig: {type: SeparateDebitCreditFields, debitField: Debit, creditField: Credit}
    statusConfig: {fieldName: Status, pendingString: Pending, clearedString: Cleared}
`

const allyCSV = "Date, Time, Amount, Type, Description\n" +
	"2018-06-03, 12:00:00, -85.10, Withdrawal, COSTCO WHSE #123\n" +
	"2018-06-01, 01:01:54, -4874, Withdrawal, Requested transfer to Online Savings\n" +
	"2018-06-02, 10:00:00, 1500.00, Deposit, ACME CORP PAYROLL\n"

func selectConfig(t *testing.T, sel config.Selection) *config.Config {
	t.Helper()
	doc, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	cfg, err := doc.Select(sel)
	require.NoError(t, err)
	return cfg
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func logContext(buf *bytes.Buffer) context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(buf, zerolog.DebugLevel))
}

func TestImportExport_AllyToSheets(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "ally.csv"), allyCSV)
	dst := filepath.Join(dir, "ledger.csv")

	cfg := selectConfig(t, config.Selection{
		AccountID:   "ally-checking",
		DstFormatID: "sheets",
		SrcPath:     src,
		DstPath:     dst,
	})
	prompter := &prompt.Scripted{Answers: []int{2}}
	tio, err := New(cfg, prompter)
	require.NoError(t, err)

	ctx := context.Background()
	txns, err := tio.Import(ctx)
	require.NoError(t, err)
	require.Len(t, txns, 3)

	// Import keeps source order
	assert.Equal(t, "COSTCO WHSE #123", txns[0].RawPayeeName())
	assert.Equal(t, "Household", txns[0].Category())
	assert.Equal(t, domain.PhaseCategorized, txns[0].Phase())

	report := tio.Report()
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 3, report.Enrichment.Normalized)
	assert.Equal(t, 1, report.Enrichment.Prompted)
	require.Len(t, prompter.Questions, 1)
	assert.Contains(t, prompter.Questions[0], "Costco")

	require.NoError(t, tio.Export(ctx, txns))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t,
		"06/01/2018,Ally Savings,Transfer,4874.00,,Cleared,\n"+
			"06/02/2018,Employer Payroll,Income,,1500.00,Cleared,\n"+
			"06/03/2018,Costco,Household,85.10,,Cleared,\n",
		string(data))
}

func TestImportExport_StdinToStdout(t *testing.T) {
	var out bytes.Buffer
	cfg := selectConfig(t, config.Selection{
		AccountID:   "ally-checking",
		SrcPath:     "",
		Overrides:   config.Overrides{SkipPrompts: boolPtr(true)},
		DstFormatID: "",
	})
	tio, err := New(cfg, nil, WithStdin(strings.NewReader(allyCSV)), WithStdout(&out))
	require.NoError(t, err)

	txns, err := tio.Import(context.Background())
	require.NoError(t, err)
	require.NoError(t, tio.Export(context.Background(), txns))

	// The destination defaults to the account's own format.
	assert.Equal(t,
		"Date,Time,Amount,Type,Description\n"+
			"2018-06-01,01:01:54,4874.00,Withdrawal,Ally Savings\n"+
			"2018-06-02,10:00:00,1500.00,Deposit,Employer Payroll\n"+
			"2018-06-03,12:00:00,85.10,Withdrawal,Costco\n",
		out.String())
	assert.Equal(t, 0, tio.Report().Enrichment.Prompted)
	assert.Equal(t, 1, tio.Report().Enrichment.Uncategorized)
}

func TestImport_RowErrorAbort(t *testing.T) {
	content := "Date,Time,Amount,Type,Description\n" +
		"2018-06-01,01:01:54,-4874,Withdrawal,Transfer\n" +
		"2018-13-45,01:01:54,-10,Withdrawal,Broken\n"
	src := writeFile(t, filepath.Join(t.TempDir(), "ally.csv"), content)

	cfg := selectConfig(t, config.Selection{AccountID: "ally-checking", SrcPath: src})
	tio, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = tio.Import(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, mapper.ErrInvalidDateTime), "got %v", err)
	assert.Contains(t, err.Error(), "row 2 (line 3)")
	assert.Contains(t, err.Error(), src)
}

func TestImport_RowErrorSkip(t *testing.T) {
	content := "Date,Time,Amount,Type,Description\n" +
		"2018-06-01,01:01:54,-4874,Withdrawal,Transfer\n" +
		"2018-06-02,01:01:54,-10,Refund,Broken\n" +
		"2018-06-03,01:01:54,,Withdrawal,No amount\n"
	src := writeFile(t, filepath.Join(t.TempDir(), "ally.csv"), content)

	cfg := selectConfig(t, config.Selection{
		AccountID:      "ally-checking",
		SrcPath:        src,
		RowErrorPolicy: config.RowErrorSkip,
	})
	tio, err := New(cfg, nil)
	require.NoError(t, err)

	var logs bytes.Buffer
	txns, err := tio.Import(logContext(&logs))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, 2, tio.Report().Skipped)
	assert.Equal(t, 3, tio.Report().Rows)
	assert.Contains(t, logs.String(), "skipping row that could not be mapped")
	assert.Contains(t, logs.String(), `"row":2`)
	assert.Contains(t, logs.String(), `"row":3`)
}

func TestImport_DirectoryDropsCrossFileDuplicates(t *testing.T) {
	dir := t.TempDir()
	header := "Date,Time,Amount,Type,Description\n"
	coffee := "2018-06-01,08:00:00,-4.50,Withdrawal,COFFEE SHOP\n"
	writeFile(t, filepath.Join(dir, "2018-06a.csv"), header+coffee+coffee)
	writeFile(t, filepath.Join(dir, "2018-06b.csv"), header+coffee+coffee+coffee+
		"2018-06-02,09:00:00,-12.00,Withdrawal,BOOK STORE\n")
	writeFile(t, filepath.Join(dir, "notes.md"), "ignored")

	cfg := selectConfig(t, config.Selection{AccountID: "ally-checking", SrcPath: dir})
	tio, err := New(cfg, nil)
	require.NoError(t, err)

	var logs bytes.Buffer
	txns, err := tio.Import(logContext(&logs))
	require.NoError(t, err)

	report := tio.Report()
	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 6, report.Rows)
	assert.Equal(t, 2, report.Duplicates, "only the overlap with the first file is dropped")
	assert.Len(t, txns, 4)
	assert.Contains(t, logs.String(), "dropping transaction already read from another file")
}

func TestImport_IgnorePending(t *testing.T) {
	content := "Status,Date,Description,Debit,Credit\n" +
		"Cleared,06/01/2018,TRADER JOES #552,45.10,\n" +
		"Pending,06/02/2018,CHIPOTLE 1234,12.00,\n" +
		"Cleared,06/03/2018,PAYMENT THANK YOU,,500.00\n"
	src := writeFile(t, filepath.Join(t.TempDir(), "citi.csv"), content)

	var out bytes.Buffer
	cfg := selectConfig(t, config.Selection{
		AccountID: "citi-card",
		SrcPath:   src,
		Overrides: config.Overrides{IgnorePending: boolPtr(true)},
	})
	tio, err := New(cfg, nil, WithStdout(&out))
	require.NoError(t, err)

	txns, err := tio.Import(context.Background())
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, 1, tio.Report().Pending)
	assert.Equal(t, "Groceries", txns[0].Category())

	require.NoError(t, tio.Export(context.Background(), txns))
	// The account sorts descending.
	assert.Equal(t,
		"Status,Date,Description,Debit,Credit\n"+
			"Cleared,06/03/2018,PAYMENT THANK YOU,,500.00\n"+
			"Cleared,06/01/2018,Trader Joe's,45.10,\n",
		out.String())
}

func TestImport_OFX(t *testing.T) {
	statement := `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240101120000
<LANGUAGE>ENG
<FI>
<ORG>TESTBANK
<FID>12345
</FI>
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>9876543210
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101000000
<DTEND>20240131235959
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000
<TRNAMT>-50.00
<FITID>TXN001
<NAME>GROCERY STORE
<MEMO>Weekly groceries
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240110120000
<TRNAMT>1000.00
<FITID>TXN002
<NAME>ACME PAYROLL
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>2000.00
<DTASOF>20240131235959
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`
	src := writeFile(t, filepath.Join(t.TempDir(), "download.qfx"), statement)

	var out bytes.Buffer
	cfg := selectConfig(t, config.Selection{AccountID: "ally-ofx", DstFormatID: "sheets", SrcPath: src})
	tio, err := New(cfg, nil, WithStdout(&out))
	require.NoError(t, err)

	txns, err := tio.Import(context.Background())
	require.NoError(t, err)
	require.Len(t, txns, 2)
	require.NoError(t, tio.Export(context.Background(), txns))

	assert.Equal(t,
		"01/10/2024,Employer Payroll,Income,,1000.00,Cleared,\n"+
			"01/15/2024,GROCERY STORE,,50.00,,Cleared,Weekly groceries\n",
		out.String())
}

func TestImport_FileErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.csv")
	cfg := selectConfig(t, config.Selection{AccountID: "ally-checking", SrcPath: missing})
	tio, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = tio.Import(context.Background())
	require.Error(t, err)

	var fileErr *FileError
	require.True(t, errors.As(err, &fileErr), "got %T", err)
	assert.Equal(t, "open", fileErr.Op)
	assert.Equal(t, missing, fileErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), missing)
}

func TestImport_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	cfg := selectConfig(t, config.Selection{AccountID: "ally-checking", SrcPath: dir})
	tio, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = tio.Import(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no csv files found in "+dir)
}

func TestImport_WrongDataFormat(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "ally.csv"), allyCSV)
	cfg := selectConfig(t, config.Selection{AccountID: "ally-ofx", DstFormatID: "sheets", SrcPath: src})
	tio, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = tio.Import(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ofx parser accepts file")
}

func TestImport_Cancelled(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "ally.csv"), allyCSV)
	cfg := selectConfig(t, config.Selection{AccountID: "ally-checking", SrcPath: src})
	tio, err := New(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tio.Import(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExport_CreateError(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "missing", "out.csv")
	cfg := selectConfig(t, config.Selection{AccountID: "ally-checking", DstPath: dst})
	tio, err := New(cfg, nil)
	require.NoError(t, err)

	err = tio.Export(context.Background(), nil)
	require.Error(t, err)

	var fileErr *FileError
	require.True(t, errors.As(err, &fileErr))
	assert.Equal(t, "create", fileErr.Op)
	assert.Equal(t, dst, fileErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileError_Message(t *testing.T) {
	err := &FileError{Op: "open", Path: "/statements/ally.csv", Err: os.ErrNotExist}
	assert.Equal(t, "failed to open /statements/ally.csv: file does not exist", err.Error())
}

func boolPtr(b bool) *bool { return &b }
