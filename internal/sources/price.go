package sources

import (
	"regexp"
	"strconv"
	"strings"

	"shopvision/internal/models"
)

var (
	numberPattern   = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	isoCodePattern  = regexp.MustCompile(`\b([A-Z]{3})\b`)
	currencySymbols = []struct {
		symbol string
		code   string
	}{
		{"₹", "INR"},
		{"Rs.", "INR"},
		{"Rs", "INR"},
		{"US$", "USD"},
		{"$", "USD"},
		{"€", "EUR"},
		{"£", "GBP"},
	}
	isoCodes = map[string]bool{
		"INR": true, "USD": true, "EUR": true, "GBP": true,
		"JPY": true, "AUD": true, "CAD": true, "SGD": true, "AED": true,
	}
)

// ParsePrice extracts an amount and currency from price text such as "₹1,299",
// "$12.99" or "1299.00 INR". The fallback currency is used when the text names
// none. It returns nil when no amount can be read or no currency is known.
func ParsePrice(text, fallbackCurrency string) *models.Price {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	raw := numberPattern.FindString(text)
	if raw == "" {
		return nil
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || amount < 0 {
		return nil
	}

	currency := detectCurrency(text)
	if currency == "" {
		currency = strings.ToUpper(fallbackCurrency)
	}

	if currency == "" {
		return nil
	}

	return &models.Price{Amount: amount, Currency: currency}
}

func detectCurrency(text string) string {
	for _, cs := range currencySymbols {
		if strings.Contains(text, cs.symbol) {
			return cs.code
		}
	}

	for _, m := range isoCodePattern.FindAllStringSubmatch(text, -1) {
		if isoCodes[m[1]] {
			return m[1]
		}
	}

	return ""
}

// ParseRating reads the leading number of text such as "4.3 out of 5 stars".
// Values outside [0, 5] are rejected.
func ParseRating(text string) *float64 {
	raw := numberPattern.FindString(text)
	if raw == "" {
		return nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}

	return &v
}

// ParseCount reads a count such as "1,234" or "(1,234)".
func ParseCount(text string) *int {
	raw := numberPattern.FindString(text)
	if raw == "" || strings.Contains(raw, ".") {
		return nil
	}

	n, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return nil
	}

	return &n
}
