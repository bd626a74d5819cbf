package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "12.50", Money(1250).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "0.00", Money(0).String())
	assert.Equal(t, "45.00 GBP", Money(4500).Format("GBP"))
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{in: "12.50", want: 1250},
		{in: "99.99", want: 9999},
		{in: "7", want: 700},
		{in: "0.001", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoneyFromDecimal_MatchesDecimal(t *testing.T) {
	m, err := MoneyFromDecimal(decimal.RequireFromString("123.40"))
	require.NoError(t, err)
	assert.True(t, m.Decimal().Equal(decimal.RequireFromString("123.4")))
}
