package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLeadingFloat(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		hasError bool
	}{
		{input: "199 RUB", expected: 199},
		{input: "  149 ₽ ", expected: 149},
		{input: "59,90 ₽", expected: 59.9},
		{input: "120.5", expected: 120.5},
		{input: "", hasError: true},
		{input: "RUB 199", hasError: true},
		{input: "Infinity RUB", hasError: true},
		{input: "-Inf", hasError: true},
		{input: "NaN ₽", hasError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			val, err := ParseLeadingFloat(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, val, 1e-9)
		})
	}
}

func TestSaleTag(t *testing.T) {
	tests := []struct {
		current  float64
		original float64
		expected string
	}{
		{current: 149, original: 199, expected: "Discount 25%"},
		{current: 199, original: 199, expected: "Discount 0%"},
		{current: 50, original: 100, expected: "Discount 50%"},
		{current: 99, original: 100, expected: "Discount 1%"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			tag, err := SaleTag(tt.current, tt.original)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tag)
		})
	}
}

func TestSaleTagZeroOriginal(t *testing.T) {
	tag, err := SaleTag(10, 0)
	assert.ErrorIs(t, err, ErrComputation)
	assert.Empty(t, tag)
}

func TestBuildPriceData(t *testing.T) {
	price, err := BuildPriceData("199 RUB", "149 RUB", true)
	require.NoError(t, err)
	assert.Equal(t, 149.0, price.Current)
	assert.Equal(t, 199.0, price.Original)
	assert.Equal(t, "Discount 25%", price.SaleTag)

	price, err = BuildPriceData("199 RUB", "", false)
	require.NoError(t, err)
	assert.Equal(t, 199.0, price.Current)
	assert.Equal(t, "Discount 0%", price.SaleTag)

	// An unreadable special price falls back to the regular one.
	price, err = BuildPriceData("199 RUB", "скоро", true)
	require.NoError(t, err)
	assert.Equal(t, 199.0, price.Current)

	// A special price above the regular one is not a discount.
	price, err = BuildPriceData("100 RUB", "150 RUB", true)
	require.NoError(t, err)
	assert.Equal(t, 100.0, price.Current)
	assert.Equal(t, "Discount 0%", price.SaleTag)

	price, err = BuildPriceData("100 RUB", "Infinity RUB", true)
	require.NoError(t, err)
	assert.Equal(t, 100.0, price.Current)

	_, err = BuildPriceData("Infinity RUB", "", false)
	assert.ErrorIs(t, err, ErrComputation)

	_, err = BuildPriceData("0 RUB", "", false)
	assert.ErrorIs(t, err, ErrComputation)
}
