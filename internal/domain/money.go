package domain

import "github.com/shopspring/decimal"

// Amounts are rendered as JSON numbers, not strings.
func init() { decimal.MarshalJSONWithoutQuotes = true }

// Prices live in the database as integer cents.

func FromCents(cents int64) decimal.Decimal { return decimal.New(cents, -2) }

func ToCents(d decimal.Decimal) int64 { return d.Shift(2).Round(0).IntPart() }

func LineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}
