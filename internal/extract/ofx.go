package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/mchanga/chamaflow/internal/common"
)

// OFXExtractor parses OFX/QFX statement downloads.
type OFXExtractor struct{}

// NewOFXExtractor creates an OFX statement extractor.
func NewOFXExtractor() *OFXExtractor {
	return &OFXExtractor{}
}

// Format implements Extractor.
func (e *OFXExtractor) Format() string { return "ofx" }

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocessOFX fixes common formatting issues in bank-produced OFX files:
// leading whitespace before the header, mixed-case SEVERITY values, and
// SGML-style opening tags missing their closing bracket.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	content = tagFixRegex.ReplaceAllString(content, "$1>")
	return content
}

// Extract implements Extractor. Every bank statement in the file
// contributes rows; the OFX FITID becomes the row's external identifier.
func (e *OFXExtractor) Extract(ctx context.Context, path string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}

	var rows []Row
	statements := 0
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		statements++
		for _, ofxTx := range stmt.BankTranList.Transactions {
			row, convErr := convertOFXTransaction(ofxTx)
			if convErr != nil {
				return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, convErr)
			}
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, common.ErrNoRowsExtracted
	}

	slog.Debug("Parsed OFX statement file",
		"path", path,
		"bank_statements", statements,
		"rows", len(rows))
	return rows, nil
}

// convertOFXTransaction maps one OFX transaction onto a statement row.
// OFX amounts are signed: positive means money in, negative money out.
func convertOFXTransaction(ofxTx ofxgo.Transaction) (Row, error) {
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(2))
	if err != nil {
		return Row{}, fmt.Errorf("invalid amount for %s: %w", ofxTx.FiTID, err)
	}

	row := Row{
		Date:        ofxTx.DtPosted.Time,
		Description: ofxDescription(ofxTx),
		ExternalID:  string(ofxTx.FiTID),
	}
	if amount.IsNegative() {
		row.Debit = amount.Neg()
	} else {
		row.Credit = amount
	}
	return row, nil
}

// ofxDescription joins NAME and MEMO when both carry information, since
// banks split payer details between them inconsistently.
func ofxDescription(ofxTx ofxgo.Transaction) string {
	name := strings.TrimSpace(string(ofxTx.Name))
	memo := strings.TrimSpace(string(ofxTx.Memo))
	switch {
	case name == "":
		return memo
	case memo == "" || memo == name:
		return name
	default:
		return name + " " + memo
	}
}
