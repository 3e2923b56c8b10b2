package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// parseRupees turns "12.50" into 1250 paise. Amounts are kept as
// integer paise everywhere; floats never touch money.
func parseRupees(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(value, "-") {
		negative = true
		value = value[1:]
	}
	if value == "" {
		return 0, fmt.Errorf("invalid amount %q", "-")
	}

	// Both parts must be bare digits: ParseInt alone would let a signed
	// fraction like "1.-5" through.
	whole, fraction, _ := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	if !allDigits(whole) {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	rupees, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}

	paise := int64(0)
	if fraction != "" {
		if len(fraction) > 2 {
			return 0, fmt.Errorf("invalid amount %q: more than two decimal places", value)
		}
		if !allDigits(fraction) {
			return 0, fmt.Errorf("invalid amount %q", value)
		}
		for len(fraction) < 2 {
			fraction += "0"
		}
		paise, err = strconv.ParseInt(fraction, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", value)
		}
	}

	total := rupees*100 + paise
	if negative {
		total = -total
	}
	return total, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func formatPaise(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("%s%d.%02d", sign, paise/100, paise%100)
}
