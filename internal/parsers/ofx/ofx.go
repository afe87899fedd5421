// Package ofx reads OFX/QFX statements into rows with fixed column names
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/ncruces/go-strftime"

	"github.com/rumor-ml/commons.systems/txconv/internal/config"
	"github.com/rumor-ml/commons.systems/txconv/internal/logger"
	"github.com/rumor-ml/commons.systems/txconv/internal/parser"
)

// Column names of the rows produced by this parser. A format describing an OFX
// source names these in its field order.
const (
	FieldDate   = "Date"
	FieldAmount = "Amount"
	FieldType   = "Type"
	FieldName   = "Name"
	FieldMemo   = "Memo"
	FieldFITID  = "FITID"
)

// DateFormat is the strftime layout of the Date column
const DateFormat = "%Y-%m-%d"

// Parser implements OFX/QFX parsing. It holds no state and is safe for
// concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared OFX parser instance.
func NewParser() *Parser {
	return parserInstance
}

// getFileInfo returns a formatted file path string for error messages
func getFileInfo(meta *parser.Metadata) string {
	if meta != nil && meta.FilePath() != "" {
		return fmt.Sprintf(" from %s", meta.FilePath())
	}
	return ""
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "ofx"
}

// DataFormat returns config.DataFormatOFX
func (p *Parser) DataFormat() config.DataFormat {
	return config.DataFormatOFX
}

// CanParse checks if this parser can handle the file based on extension and header
func (p *Parser) CanParse(path string, header []byte) bool {
	if path != parser.StdinPath {
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".ofx" && ext != ".qfx" {
			return false
		}
	}

	// Both v1 SGML and v2 XML markers
	headerUpper := strings.ToUpper(string(header))
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Parse returns one row per bank, credit card or investment cash transaction.
// Row line numbers are the 1-based position of the transaction in the file.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) ([]parser.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content%s: %w", getFileInfo(meta), err)
	}

	// ofxgo.ParseResponse does not take a context
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file%s (%d bytes): %w", getFileInfo(meta), len(content), err)
	}

	var txns []ofxgo.Transaction
	switch {
	case len(response.CreditCard) > 0:
		txns, err = creditCardTransactions(response)
	case len(response.Bank) > 0:
		txns, err = bankTransactions(response)
	case len(response.InvStmt) > 0:
		txns, err = investmentTransactions(response)
	default:
		return nil, fmt.Errorf("no supported statement type found in OFX file%s. Expected at least one of: credit card (CREDITCARDMSGSRSV1), bank (BANKMSGSRSV1), or investment (INVSTMTMSGSRSV1) statement", getFileInfo(meta))
	}
	if err != nil {
		return nil, fmt.Errorf("%w%s", err, getFileInfo(meta))
	}

	log := logger.FromContext(ctx)
	rows := make([]parser.Row, 0, len(txns))
	for i, txn := range txns {
		fields, err := extractFields(txn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction at index %d%s: %w", i, getFileInfo(meta), err)
		}
		if strings.HasPrefix(fields[FieldType], "UNKNOWN_") {
			log.Warn().
				Str("fitid", fields[FieldFITID]).
				Str("type", fields[FieldType]).
				Msg("unknown OFX transaction type")
		}
		rows = append(rows, parser.NewRow(i+1, fields))
	}

	return rows, nil
}

func creditCardTransactions(resp *ofxgo.Response) ([]ofxgo.Transaction, error) {
	ccStmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
	if !ok {
		return nil, fmt.Errorf("failed to type assert credit card statement: expected *ofxgo.CCStatementResponse, got %T", resp.CreditCard[0])
	}
	if ccStmt.BankTranList == nil {
		return nil, fmt.Errorf("missing transaction list in credit card statement")
	}
	return ccStmt.BankTranList.Transactions, nil
}

func bankTransactions(resp *ofxgo.Response) ([]ofxgo.Transaction, error) {
	bankStmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
	if !ok {
		return nil, fmt.Errorf("failed to type assert bank statement: expected *ofxgo.StatementResponse, got %T", resp.Bank[0])
	}
	if bankStmt.BankTranList == nil {
		return nil, fmt.Errorf("missing transaction list in bank statement")
	}
	return bankStmt.BankTranList.Transactions, nil
}

// investmentTransactions returns the cash movements of an investment
// statement. Security trades have no payee or amount in the converter's sense
// and are rejected.
func investmentTransactions(resp *ofxgo.Response) ([]ofxgo.Transaction, error) {
	invStmt, ok := resp.InvStmt[0].(*ofxgo.InvStatementResponse)
	if !ok {
		return nil, fmt.Errorf("failed to type assert investment statement: expected *ofxgo.InvStatementResponse, got %T", resp.InvStmt[0])
	}
	if invStmt.InvTranList == nil {
		return nil, fmt.Errorf("missing transaction list in investment statement")
	}
	if n := len(invStmt.InvTranList.InvTransactions); n > 0 {
		return nil, fmt.Errorf("investment statement contains %d security transactions, only cash movements can be converted", n)
	}

	var txns []ofxgo.Transaction
	for _, invBankTxn := range invStmt.InvTranList.BankTransactions {
		txns = append(txns, invBankTxn.Transactions...)
	}
	return txns, nil
}

// mapOFXTransactionType maps an OFX transaction type to its column value.
// Types without a mapping become UNKNOWN_<type>.
func mapOFXTransactionType(txn ofxgo.Transaction) string {
	switch txn.TrnType {
	case ofxgo.TrnTypeCredit:
		return "CREDIT"
	case ofxgo.TrnTypeDebit:
		return "DEBIT"
	case ofxgo.TrnTypeATM:
		return "ATM"
	case ofxgo.TrnTypeCheck:
		return "CHECK"
	case ofxgo.TrnTypeXfer:
		return "TRANSFER"
	case ofxgo.TrnTypeFee:
		return "FEE"
	case ofxgo.TrnTypePOS:
		return "POS"
	case ofxgo.TrnTypePayment:
		return "PAYMENT"
	case ofxgo.TrnTypeInt:
		return "INTEREST"
	case ofxgo.TrnTypeDep:
		return "DEPOSIT"
	default:
		return fmt.Sprintf("UNKNOWN_%v", txn.TrnType)
	}
}

// extractFields builds the row columns of one OFX transaction
func extractFields(txn ofxgo.Transaction) (map[string]string, error) {
	id := txn.FiTID.String()
	if id == "" {
		return nil, fmt.Errorf("transaction missing required ID field")
	}

	// Use posted date; if not available, fallback to user date
	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return nil, fmt.Errorf("transaction %s missing both posted date and user date", id)
	}

	// Use Name field for the payee; if empty, fallback to Memo field
	memo := strings.TrimSpace(txn.Memo.String())
	name := strings.TrimSpace(txn.Name.String())
	if name == "" {
		name = memo
	}
	if name == "" {
		return nil, fmt.Errorf("transaction %s missing both name and memo fields", id)
	}

	return map[string]string{
		FieldDate:   strftime.Format(DateFormat, date),
		FieldAmount: txn.TrnAmt.FloatString(2),
		FieldType:   mapOFXTransactionType(txn),
		FieldName:   name,
		FieldMemo:   memo,
		FieldFITID:  id,
	}, nil
}
