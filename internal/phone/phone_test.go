package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "local format with trunk zero", raw: "0716227320", want: "254716227320"},
		{name: "bare subscriber number", raw: "716227320", want: "254716227320"},
		{name: "international with plus", raw: "+254716227320", want: "254716227320"},
		{name: "already canonical", raw: "254716227320", want: "254716227320"},
		{name: "dashes and spaces stripped", raw: "0716-227 320", want: "254716227320"},
		{name: "parentheses stripped", raw: "(0716) 227320", want: "254716227320"},
		{name: "too short", raw: "12345", want: ""},
		{name: "too long", raw: "2547162273201", want: ""},
		{name: "wrong country code", raw: "255716227320", want: ""},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"0716227320", "716227320", "+254716227320", "254716227320"}
	for _, raw := range inputs {
		once := Normalize(raw)
		assert.Equal(t, "254716227320", once)
		assert.Equal(t, once, Normalize(once), "Normalize must be idempotent for %q", raw)
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "mpesa particulars",
			text: "MPS2547 JACINTA WAN 0716227320",
			want: []string{"254716227320"},
		},
		{
			name: "international format embedded",
			text: "MPS 254720499810 TGG77BLCU1 BONIFACE MWAURA",
			want: []string{"254720499810"},
		},
		{
			name: "multiple distinct numbers",
			text: "from 0716227320 to 0720499810",
			want: []string{"254716227320", "254720499810"},
		},
		{
			name: "same number in two formats deduplicated",
			text: "0716227320 / +254716227320",
			want: []string{"254716227320"},
		},
		{name: "no phones", text: "CHEQUE DEPOSIT 1200", want: []string{}},
		{name: "empty text", text: "", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, "227320", Suffix("254716227320", 6))
	assert.Equal(t, "1234", Suffix("1234", 6))
}

func TestNameTokens(t *testing.T) {
	assert.Equal(t, []string{"jacinta", "wanjiru"}, NameTokens("  Jacinta   WANJIRU "))
	assert.Equal(t, []string{"mwaura"}, NameTokens("Jo W Mwaura"))
	assert.Equal(t, []string{}, NameTokens(""))
}
