package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchanga/chamaflow/internal/common"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCSVExtractor(t *testing.T) {
	ctx := context.Background()
	extractor := NewCSVExtractor()

	t.Run("standard export", func(t *testing.T) {
		path := writeTempFile(t, "statement.csv",
			"Date,Details,Money In,Money Out,Balance,Reference\n"+
				"2024-03-01,JACINTA WANJIRU 0716227320,\"1,500.00\",,\"10,500.00\",QC12AB34CD\n"+
				"02/03/2024,BANK CHARGES,,35.00,\"10,465.00\",\n")

		rows, err := extractor.Extract(ctx, path)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, "JACINTA WANJIRU 0716227320", rows[0].Description)
		assert.Equal(t, "1500", rows[0].Credit.String())
		assert.True(t, rows[0].Debit.IsZero())
		assert.Equal(t, "10500", rows[0].Balance.String())
		assert.Equal(t, "QC12AB34CD", rows[0].ExternalID)
		assert.Equal(t, "2024-03-01", rows[0].Date.Format("2006-01-02"))

		assert.Equal(t, "BANK CHARGES", rows[1].Description)
		assert.True(t, rows[1].Credit.IsZero())
		assert.Equal(t, "35", rows[1].Debit.String())
		assert.Equal(t, "2024-03-02", rows[1].Date.Format("2006-01-02"))
	})

	t.Run("signed single amount column", func(t *testing.T) {
		path := writeTempFile(t, "signed.csv",
			"Date,Description,Credit\n"+
				"2024-03-01,DEPOSIT,200.00\n"+
				"2024-03-02,WITHDRAWAL,-50.00\n")

		rows, err := extractor.Extract(ctx, path)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "200", rows[0].Credit.String())
		assert.True(t, rows[1].Credit.IsZero())
		assert.Equal(t, "50", rows[1].Debit.String())
	})

	t.Run("blank lines skipped", func(t *testing.T) {
		path := writeTempFile(t, "blanks.csv",
			"Date,Description,Credit\n"+
				"2024-03-01,DEPOSIT,200.00\n"+
				",,\n")

		rows, err := extractor.Extract(ctx, path)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("missing date column", func(t *testing.T) {
		path := writeTempFile(t, "nodate.csv",
			"Description,Credit\nDEPOSIT,200.00\n")

		_, err := extractor.Extract(ctx, path)
		assert.ErrorIs(t, err, common.ErrExtractionFailed)
	})

	t.Run("header only", func(t *testing.T) {
		path := writeTempFile(t, "empty.csv", "Date,Description,Credit\n")

		_, err := extractor.Extract(ctx, path)
		assert.ErrorIs(t, err, common.ErrNoRowsExtracted)
	})

	t.Run("bad amount", func(t *testing.T) {
		path := writeTempFile(t, "bad.csv",
			"Date,Description,Credit\n2024-03-01,DEPOSIT,not-a-number\n")

		_, err := extractor.Extract(ctx, path)
		assert.ErrorIs(t, err, common.ErrExtractionFailed)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := extractor.Extract(ctx, filepath.Join(t.TempDir(), "absent.csv"))
		assert.ErrorIs(t, err, common.ErrExtractionFailed)
	})
}

func TestForFile(t *testing.T) {
	tests := []struct {
		path   string
		format string
	}{
		{"statements/march.csv", "csv"},
		{"statements/march.OFX", "ofx"},
		{"statements/march.qfx", "ofx"},
		{"statements/march.pdf", "pdf"},
	}
	for _, tt := range tests {
		extractor, err := ForFile(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.format, extractor.Format())
	}

	_, err := ForFile("statements/march.xlsx")
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "0"},
		{"-", "0"},
		{"1,234.56", "1234.56"},
		{"KES 2,000.00", "2000"},
		{"(150.00)", "-150"},
		{"-35.50", "-35.5"},
	}
	for _, tt := range tests {
		got, err := parseMoney(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got.String(), tt.input)
	}

	_, err := parseMoney("abc")
	assert.Error(t, err)
}
