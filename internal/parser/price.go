package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/maltedev/fixprice-scraper/internal/models"
)

// ParseLeadingFloat parses the numeric token in front of the first space,
// dropping the currency suffix ("199 RUB" -> 199).
func ParseLeadingFloat(s string) (float64, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty price text")
	}

	token := strings.Replace(fields[0], ",", ".", 1)
	val, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	if math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, fmt.Errorf("parse price %q: not a finite number", s)
	}

	return val, nil
}

// SaleTag renders the discount of current against original, truncating the
// percentage toward zero.
func SaleTag(current, original float64) (string, error) {
	if original == 0 || math.IsNaN(original) || math.IsInf(original, 0) {
		return "", fmt.Errorf("%w: original price is %v", ErrComputation, original)
	}

	pct := int(100 - current/original*100)
	return fmt.Sprintf("Discount %d%%", pct), nil
}

// BuildPriceData assembles pricing from the regular and special price texts.
// Without a usable special price the current price equals the original. A
// special price above the regular one is ignored the same way.
func BuildPriceData(regularText, specialText string, hasSpecial bool) (models.PriceData, error) {
	original, err := ParseLeadingFloat(regularText)
	if err != nil {
		return models.PriceData{}, &FieldError{
			Field: "price_data.original",
			Err:   fmt.Errorf("%w: %v", ErrComputation, err),
		}
	}

	current := original
	if hasSpecial {
		if special, err := ParseLeadingFloat(specialText); err == nil && special <= original {
			current = special
		}
	}

	tag, err := SaleTag(current, original)
	if err != nil {
		return models.PriceData{}, &FieldError{Field: "price_data.sale_tag", Err: err}
	}

	return models.PriceData{
		Current:  current,
		Original: original,
		SaleTag:  tag,
	}, nil
}
