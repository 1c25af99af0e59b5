package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePDFText(t *testing.T) {
	t.Run("three amount columns", func(t *testing.T) {
		text := "ACME SACCO LIMITED\n" +
			"Statement of Account\n" +
			"01/03/2024 JACINTA WANJIRU 0716227320 1,500.00 0.00 10,500.00\n" +
			"02/03/2024 BANK CHARGES 0.00 35.00 10,465.00\n" +
			"Page 1 of 1\n"

		rows, err := parsePDFText(text)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "JACINTA WANJIRU 0716227320", rows[0].Description)
		assert.Equal(t, "1500", rows[0].Credit.String())
		assert.Equal(t, "10500", rows[0].Balance.String())
		assert.Equal(t, "35", rows[1].Debit.String())
	})

	t.Run("movement inferred from balance", func(t *testing.T) {
		text := "01/03/2024 OPENING DEPOSIT 1,000.00 1,000.00\n" +
			"02/03/2024 LEDGER FEE 35.00 965.00\n" +
			"03/03/2024 MPESA 0720499810 500.00 1,465.00\n"

		rows, err := parsePDFText(text)
		require.NoError(t, err)
		require.Len(t, rows, 3)

		assert.Equal(t, "1000", rows[0].Credit.String())
		assert.True(t, rows[0].Debit.IsZero())

		assert.Equal(t, "35", rows[1].Debit.String())
		assert.True(t, rows[1].Credit.IsZero())

		assert.Equal(t, "500", rows[2].Credit.String())
		assert.True(t, rows[2].Debit.IsZero())
	})

	t.Run("no transaction lines", func(t *testing.T) {
		rows, err := parsePDFText("Scanned image placeholder\n")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}
