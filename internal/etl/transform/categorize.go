package transform

import (
	"regexp"
	"strings"
)

// Category names referenced by classification.
const (
	CategoryFees        = "Fees"
	CategoryShipping    = "Shipping"
	CategoryAdjustment  = "Adjustment"
	CategoryDiscount    = "Discount"
	CategoryServices    = "Services"
	CategoryCharity     = "Charity"
	CategoryGiftVoucher = "Gift Voucher"
	CategoryGiftSets    = "Gift Sets"
	CategoryStationery  = "Stationery"
	Uncategorized       = "Uncategorized"
)

// categoryRule is one ordered pattern rule: first match wins.
type categoryRule struct {
	match       func(stockCode, description string) bool
	category    string
	subcategory func(stockCode string) string
	isGift      bool
}

func exact(code, category, subcategory string) categoryRule {
	return categoryRule{
		match:       func(sc, _ string) bool { return sc == code },
		category:    category,
		subcategory: func(string) string { return subcategory },
	}
}

var voucherAmountRe = regexp.MustCompile(`GIFT_[A-Z0-9]+_(\d+)`)

// categoryRules is evaluated in order; unmatched stock codes fall through to
// Uncategorized.
var categoryRules = []categoryRule{
	exact("AMAZONFEE", CategoryFees, "Marketplace Fee"),
	exact("BANKCHARGES", CategoryFees, "Bank Charge"),
	exact("POST", CategoryShipping, "Postage"),
	exact("C2", CategoryShipping, "Carrier Surcharge"),
	exact("DOT", CategoryAdjustment, "Rounding"),
	exact("D", CategoryDiscount, "Manual Discount"),
	exact("M", CategoryAdjustment, "Manual"),
	exact("S", CategoryServices, "Service Charge"),
	exact("CRUK", CategoryCharity, "Donation"),
	exact("PADS", CategoryStationery, "Pads"),
	{
		match:    func(sc, _ string) bool { return strings.HasPrefix(sc, "GIFT_") },
		category: CategoryGiftVoucher,
		subcategory: func(sc string) string {
			if m := voucherAmountRe.FindStringSubmatch(sc); m != nil {
				return "Voucher £" + m[1]
			}
			return "Voucher"
		},
		isGift: true,
	},
	{
		match:       func(sc, _ string) bool { return sc == "DCGSSBOY" },
		category:    CategoryGiftSets,
		subcategory: func(string) string { return "Boy" },
		isGift:      true,
	},
	{
		match:       func(sc, _ string) bool { return sc == "DCGSSGIRL" },
		category:    CategoryGiftSets,
		subcategory: func(string) string { return "Girl" },
		isGift:      true,
	},
	{
		match:       func(sc, _ string) bool { return strings.HasPrefix(sc, "DCGS") },
		category:    CategoryGiftSets,
		subcategory: func(string) string { return "DCGS" },
		isGift:      true,
	},
	{
		match: func(_, desc string) bool {
			return strings.Contains(desc, "POSTAGE") || strings.Contains(desc, "SHIPPING")
		},
		category:    CategoryShipping,
		subcategory: func(string) string { return "Postage" },
	},
	{
		match:       func(_, desc string) bool { return strings.Contains(desc, "DISCOUNT") },
		category:    CategoryDiscount,
		subcategory: func(string) string { return "Promotion" },
	},
}

// Categorize derives (category, subcategory, isGift) for a stock code from the
// ordered rule table. Unmatched codes are Uncategorized.
func Categorize(stockCode, description string) (category, subcategory string, isGift bool) {
	sc := strings.ToUpper(strings.TrimSpace(stockCode))
	desc := strings.ToUpper(description)
	for _, rule := range categoryRules {
		if rule.match(sc, desc) {
			return rule.category, rule.subcategory(sc), rule.isGift
		}
	}
	return Uncategorized, "General", false
}
