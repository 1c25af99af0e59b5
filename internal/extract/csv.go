package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mchanga/chamaflow/internal/common"
)

// CSVExtractor parses comma-separated statement exports. Banks disagree on
// header names, so columns are located by a set of known aliases rather
// than fixed positions.
type CSVExtractor struct{}

// NewCSVExtractor creates a CSV statement extractor.
func NewCSVExtractor() *CSVExtractor {
	return &CSVExtractor{}
}

// Format implements Extractor.
func (e *CSVExtractor) Format() string { return "csv" }

// columnAliases maps each logical column to the header spellings seen in
// real exports. Matching is case-insensitive on the trimmed header.
var columnAliases = map[string][]string{
	"date":        {"date", "transaction date", "txn date", "value date"},
	"description": {"description", "details", "narrative", "particulars", "transaction details"},
	"credit":      {"credit", "money in", "paid in", "deposit", "credit amount"},
	"debit":       {"debit", "money out", "withdrawn", "withdrawal", "debit amount"},
	"balance":     {"balance", "running balance", "available balance"},
	"external_id": {"reference", "ref", "receipt no", "receipt", "transaction id", "txn id"},
}

type columnIndex map[string]int

func resolveColumns(header []string) (columnIndex, error) {
	index := make(columnIndex)
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		for column, aliases := range columnAliases {
			if _, taken := index[column]; taken {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					index[column] = i
					break
				}
			}
		}
	}
	for _, required := range []string{"date", "description"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing %q column in header %v", required, header)
		}
	}
	if _, hasCredit := index["credit"]; !hasCredit {
		if _, hasDebit := index["debit"]; !hasDebit {
			return nil, fmt.Errorf("header %v has neither credit nor debit column", header)
		}
	}
	return index, nil
}

func (c columnIndex) cell(record []string, column string) string {
	i, ok := c[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// Extract implements Extractor.
func (e *CSVExtractor) Extract(ctx context.Context, path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", common.ErrExtractionFailed, err)
	}
	columns, err := resolveColumns(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}

	var rows []Row
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", common.ErrExtractionFailed, line+1, err)
		}
		line++

		if isBlankRecord(record) {
			continue
		}

		row, err := e.buildRow(columns, record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", common.ErrExtractionFailed, line, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, common.ErrNoRowsExtracted
	}
	return rows, nil
}

func (e *CSVExtractor) buildRow(columns columnIndex, record []string) (Row, error) {
	var row Row
	var err error

	if row.Date, err = parseDate(columns.cell(record, "date")); err != nil {
		return Row{}, err
	}
	row.Description = columns.cell(record, "description")
	row.ExternalID = columns.cell(record, "external_id")

	if row.Credit, err = parseMoney(columns.cell(record, "credit")); err != nil {
		return Row{}, err
	}
	if row.Debit, err = parseMoney(columns.cell(record, "debit")); err != nil {
		return Row{}, err
	}
	if row.Balance, err = parseMoney(columns.cell(record, "balance")); err != nil {
		return Row{}, err
	}

	// Some exports use one signed amount column labelled credit.
	if row.Credit.IsNegative() {
		row.Debit = row.Credit.Neg()
		row.Credit = decimal.Zero
	}
	if row.Debit.IsNegative() {
		row.Debit = row.Debit.Neg()
	}
	return row, nil
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
