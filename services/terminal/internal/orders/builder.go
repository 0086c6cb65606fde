package orders

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// The builder functions below never mutate their receiver. Each returns the
// next version of the order so rapid successive edits compose.

// AddItem adds one unit of product. The unit joins an existing line only when
// the product matches, the line carries no note, is not complimentary and both
// portions are full. Anything else starts a new line with a name and price
// snapshot.
func (o Order) AddItem(p Product) (Order, error) {
	if strings.TrimSpace(p.ID) == "" {
		return o, fmt.Errorf("%w: missing id", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return o, fmt.Errorf("%w: negative price", ErrInvalidProduct)
	}
	portion := p.Portion
	if portion == "" {
		portion = PortionFull
	}

	next := o.clone()
	if portion == PortionFull {
		for i, it := range next.Items {
			if it.ProductID == p.ID && it.Note == "" && it.Portion == PortionFull && !it.IsIkram {
				if it.Quantity >= MaxLineQuantity {
					return o, fmt.Errorf("%w: %d", ErrQuantityLimit, MaxLineQuantity)
				}
				next.Items[i].Quantity++
				return next, nil
			}
		}
	}

	next.Items = append(next.Items, OrderItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Price:       p.Price,
		Quantity:    1,
		Portion:     portion,
	})
	return next, nil
}

// UpdateQuantity changes the quantity of the line at index by delta. A line
// that would drop to zero or below is removed. Growing past MaxLineQuantity
// is refused.
func (o Order) UpdateQuantity(index, delta int) (Order, error) {
	if !o.hasIndex(index) {
		return o, itemNotFound(index)
	}
	if delta > MaxLineQuantity || o.Items[index].Quantity+delta > MaxLineQuantity {
		return o, fmt.Errorf("%w: %d", ErrQuantityLimit, MaxLineQuantity)
	}
	if delta < -o.Items[index].Quantity {
		delta = -o.Items[index].Quantity
	}
	next := o.clone()
	qty := next.Items[index].Quantity + delta
	if qty <= 0 {
		next.Items = append(next.Items[:index], next.Items[index+1:]...)
		return next, nil
	}
	next.Items[index].Quantity = qty
	return next, nil
}

func (o Order) RemoveItem(index int) (Order, error) {
	if !o.hasIndex(index) {
		return o, itemNotFound(index)
	}
	return o.UpdateQuantity(index, -o.Items[index].Quantity)
}

func (o Order) SetItemNote(index int, text string) (Order, error) {
	if !o.hasIndex(index) {
		return o, itemNotFound(index)
	}
	next := o.clone()
	next.Items[index].Note = strings.TrimSpace(text)
	return next, nil
}

// MarkIkram makes the line complimentary. The previous price is kept for
// audit. There is no way back.
func (o Order) MarkIkram(index int, reason string) (Order, error) {
	if !o.hasIndex(index) {
		return o, itemNotFound(index)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return o, ErrIkramReason
	}
	if o.Items[index].IsIkram {
		return o, ErrAlreadyIkram
	}

	next := o.clone()
	it := &next.Items[index]
	original := it.Price
	it.OriginalPrice = &original
	it.Price = decimal.Zero
	it.IsIkram = true
	it.IkramReason = reason
	return next, nil
}

// ApplyDiscount stores the discount on the order. Values are not clamped.
func (o Order) ApplyDiscount(kind DiscountType, value decimal.Decimal) (Order, error) {
	switch kind {
	case DiscountPercent, DiscountFixed:
	default:
		return o, fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, kind)
	}
	next := o.clone()
	next.Discount = &Discount{Type: kind, Value: value}
	return next, nil
}

func (o Order) ClearDiscount() Order {
	next := o.clone()
	next.Discount = nil
	return next
}

func (o Order) SetNotes(text string) Order {
	next := o.clone()
	next.Notes = strings.TrimSpace(text)
	return next
}

func (o Order) hasIndex(index int) bool {
	return index >= 0 && index < len(o.Items)
}

func itemNotFound(index int) error {
	return fmt.Errorf("%w: index %d", ErrItemNotFound, index)
}
