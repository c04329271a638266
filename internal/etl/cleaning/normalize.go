package cleaning

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

var (
	stockCodeJunkRe  = regexp.MustCompile(`[^\w\-.]`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	trailingPunctRe  = regexp.MustCompile(`[.,\-\s]+$`)
	quantityKeepRe   = regexp.MustCompile(`[^\d\-.]`)
	currencySymbolRe = regexp.MustCompile(`[£$€\s,]`)
)

// countryAliases standardizes the short forms seen in the extracts.
var countryAliases = map[string]string{
	"Uk":   "United Kingdom",
	"Usa":  "United States",
	"Uae":  "United Arab Emirates",
	"Rsa":  "South Africa",
	"Eire": "Ireland",
}

func cleanStockCode(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return stockCodeJunkRe.ReplaceAllString(s, "")
}

func cleanDescription(raw string) string {
	s := whitespaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	if s == "" {
		return unknownDescription
	}
	s = titleCaser.String(strings.ToLower(s))
	return trailingPunctRe.ReplaceAllString(s, "")
}

func cleanCustomerID(raw string) (id string, guest bool) {
	s := strings.TrimSpace(raw)
	// Numeric ids arrive as float strings from some extracts.
	s = strings.TrimSuffix(s, ".0")
	if s == "" {
		return Guest, true
	}
	return s, false
}

func cleanCountry(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "Unknown"
	}
	s = titleCaser.String(strings.ToLower(s))
	if full, ok := countryAliases[s]; ok {
		return full
	}
	return s
}

func parseQuantity(raw string) (int, error) {
	s := quantityKeepRe.ReplaceAllString(raw, "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func parseUnitPrice(raw string) (decimal.Decimal, error) {
	s := currencySymbolRe.ReplaceAllString(raw, "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(2), nil
}
