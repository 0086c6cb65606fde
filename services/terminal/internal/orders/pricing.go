package orders

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

func (o Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// DiscountAmount is subtotal*value/100 for percent discounts and the raw value
// for fixed ones.
func (o Order) DiscountAmount() decimal.Decimal {
	if o.Discount == nil {
		return decimal.Zero
	}
	switch o.Discount.Type {
	case DiscountPercent:
		return o.Subtotal().Mul(o.Discount.Value).Div(hundred)
	case DiscountFixed:
		return o.Discount.Value
	default:
		return decimal.Zero
	}
}

// Total may go below zero when the discount exceeds the subtotal.
func (o Order) Total() decimal.Decimal {
	return o.Subtotal().Sub(o.DiscountAmount())
}

// IkramValue is the sum of original prices given away on complimentary lines.
func (o Order) IkramValue() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		if it.IsIkram && it.OriginalPrice != nil {
			sum = sum.Add(it.OriginalPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	return sum
}

// Split is a display-only division of a bill.
type Split struct {
	Parties   int             `json:"parties"`
	Share     decimal.Decimal `json:"share"`
	Remainder decimal.Decimal `json:"remainder"`
}

// SplitBill divides total into n shares truncated to cents. Whatever the
// truncation leaves over is reported as Remainder.
func SplitBill(total decimal.Decimal, n int) (Split, error) {
	if n < 1 {
		return Split{}, ErrInvalidSplit
	}
	parties := decimal.NewFromInt(int64(n))
	share := total.Div(parties).Truncate(2)
	return Split{
		Parties:   n,
		Share:     share,
		Remainder: total.Sub(share.Mul(parties)),
	}, nil
}
