package transform

import "strings"

// Transaction classes. Direction is baked into the class; the effect sign
// below is the only thing net-revenue aggregation consults.
const (
	ClassSale              = "SALE"
	ClassReturn            = "RETURN"
	ClassAdjustmentIn      = "ADJUSTMENT_IN"
	ClassAdjustmentOut     = "ADJUSTMENT_OUT"
	ClassFee               = "FEE"
	ClassFeeReversal       = "FEE_REVERSAL"
	ClassShippingCharge    = "SHIPPING_CHARGE"
	ClassShippingRefund    = "SHIPPING_REFUND"
	ClassDiscount          = "DISCOUNT"
	ClassDiscountReversal  = "DISCOUNT_REVERSAL"
	ClassDonation          = "DONATION"
	ClassService           = "SERVICE"
	ClassVoucherSale       = "VOUCHER_SALE"
	ClassVoucherRedemption = "VOUCHER_REDEMPTION"
)

// effectSign maps each class to its fixed net-revenue effect. This is a
// static table, never inferred at runtime.
var effectSign = map[string]int{
	ClassSale:              +1,
	ClassReturn:            -1,
	ClassAdjustmentIn:      +1,
	ClassAdjustmentOut:     -1,
	ClassFee:               +1,
	ClassFeeReversal:       -1,
	ClassShippingCharge:    +1,
	ClassShippingRefund:    -1,
	ClassDiscount:          -1,
	ClassDiscountReversal:  +1,
	ClassDonation:          -1,
	ClassService:           +1,
	ClassVoucherSale:       0,
	ClassVoucherRedemption: -1,
}

// EffectSign returns the net-revenue sign (+1/-1/0) for a transaction class.
func EffectSign(class string) int { return effectSign[class] }

// KnownClass reports whether the class is part of the static taxonomy.
func KnownClass(class string) bool {
	_, ok := effectSign[class]
	return ok
}

// classify derives the granular transaction class from the category and the
// cancellation marker. The raw quantity sign plays no part; direction comes
// from the invoice prefix alone.
func classify(category, subcategory string, isCredit bool) string {
	switch category {
	case CategoryFees:
		if isCredit {
			return ClassFeeReversal
		}
		return ClassFee
	case CategoryShipping:
		if isCredit {
			return ClassShippingRefund
		}
		return ClassShippingCharge
	case CategoryDiscount:
		if isCredit {
			return ClassDiscountReversal
		}
		return ClassDiscount
	case CategoryCharity:
		return ClassDonation
	case CategoryAdjustment:
		if isCredit {
			return ClassAdjustmentOut
		}
		return ClassAdjustmentIn
	case CategoryGiftVoucher:
		if isCredit {
			return ClassVoucherRedemption
		}
		return ClassVoucherSale
	case CategoryServices:
		return ClassService
	}
	if strings.Contains(strings.ToUpper(subcategory), "DISCOUNT") {
		if isCredit {
			return ClassDiscountReversal
		}
		return ClassDiscount
	}
	if isCredit {
		return ClassReturn
	}
	return ClassSale
}
