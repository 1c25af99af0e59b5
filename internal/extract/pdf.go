package extract

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"github.com/mchanga/chamaflow/internal/common"
)

// maxPDFTextBytes caps the extracted text so a pathological PDF cannot
// exhaust memory.
const maxPDFTextBytes = 1 << 20

// PDFExtractor pulls transaction rows out of text-based PDF statements.
// Scanned (image-only) PDFs yield no text and fail with
// common.ErrNoRowsExtracted.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF statement extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Format implements Extractor.
func (e *PDFExtractor) Format() string { return "pdf" }

// pdfRowPattern matches a statement line: a leading date, free-text
// description, then two or three trailing amounts. Three amounts are
// credit, debit, balance; two are a single movement plus the balance.
var pdfRowPattern = regexp.MustCompile(
	`^(\d{2}[/-]\d{2}[/-]\d{4})\s+(.+?)\s+` +
		`([\d,]+\.\d{2})(?:\s+([\d,]+\.\d{2}))?\s+([\d,]+\.\d{2})$`)

// Extract implements Extractor.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (rows []Row, err error) {
	// ledongthuc/pdf panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = fmt.Errorf("%w: panic reading PDF: %v", common.ErrExtractionFailed, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}
	defer func() { _ = file.Close() }()

	plainText, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}
	text, err := io.ReadAll(io.LimitReader(plainText, maxPDFTextBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}

	rows, err = parsePDFText(string(text))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, common.ErrNoRowsExtracted
	}
	return rows, nil
}

// parsePDFText scans extracted text line by line for transaction rows.
// Lines that do not look like rows (headers, footers, page furniture) are
// skipped. When a row carries only one movement amount, the running
// balance decides whether it was a credit or a debit.
func parsePDFText(text string) ([]Row, error) {
	var rows []Row
	var prevBalance decimal.Decimal
	havePrev := false

	for _, line := range strings.Split(text, "\n") {
		match := pdfRowPattern.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}

		date, err := parseDate(match[1])
		if err != nil {
			continue
		}
		balance, err := parseMoney(match[5])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
		}

		row := Row{
			Date:        date,
			Description: strings.TrimSpace(match[2]),
			Balance:     balance,
		}

		first, err := parseMoney(match[3])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
		}

		if match[4] != "" {
			second, secondErr := parseMoney(match[4])
			if secondErr != nil {
				return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, secondErr)
			}
			row.Credit, row.Debit = first, second
		} else if havePrev && balance.LessThan(prevBalance) {
			row.Debit = first
		} else {
			row.Credit = first
		}

		rows = append(rows, row)
		prevBalance = balance
		havePrev = true
	}
	return rows, nil
}
