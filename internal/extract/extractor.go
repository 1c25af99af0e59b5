// Package extract turns bank statement files into raw transaction rows.
// Each supported format has its own extractor; the engine picks one by
// file extension and treats the rows identically from there on.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mchanga/chamaflow/internal/common"
)

// Row is one statement line as produced by an extractor. Credit and Debit
// are both non-negative; at most one of them is expected to be non-zero for
// a given row. ExternalID carries the bank's own transaction identifier
// when the format provides one (OFX FITID, CSV reference column).
type Row struct {
	Date        time.Time
	Description string
	ExternalID  string
	Credit      decimal.Decimal
	Debit       decimal.Decimal
	Balance     decimal.Decimal
}

// Extractor parses a statement file into rows in document order.
type Extractor interface {
	// Extract reads the file at path and returns its rows. Implementations
	// return common.ErrExtractionFailed (wrapped) for malformed input and
	// common.ErrNoRowsExtracted when the file parses but holds no rows.
	Extract(ctx context.Context, path string) ([]Row, error)

	// Format names the format this extractor handles, for logging.
	Format() string
}

// ForFile selects an extractor by file extension.
func ForFile(path string) (Extractor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVExtractor(), nil
	case ".ofx", ".qfx":
		return NewOFXExtractor(), nil
	case ".pdf":
		return NewPDFExtractor(), nil
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// dateLayouts are the date formats accepted across CSV and PDF statements,
// tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02/01/06",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseMoney parses a statement amount, tolerating thousands separators,
// currency markers, and parenthesized negatives. Empty cells are zero.
func parseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer(",", "", "KES", "", "Ksh", "", " ", "").Replace(s)
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unrecognized amount %q: %w", s, err)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}
