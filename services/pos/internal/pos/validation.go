package pos

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/appetiteclub/pos/pkg/enums/paymentmethod"
	"github.com/google/uuid"
)

// MaxItemQuantity caps the quantity of a single order line.
const MaxItemQuantity = 999

func ValidatePosition(ctx context.Context, req PositionRequest) []string {
	var errors []string

	if math.IsNaN(req.X) || math.IsInf(req.X, 0) {
		errors = append(errors, "x must be a finite number")
	}

	if math.IsNaN(req.Y) || math.IsInf(req.Y, 0) {
		errors = append(errors, "y must be a finite number")
	}

	return errors
}

func ValidateMerge(ctx context.Context, req MergeRequest) []string {
	var errors []string

	if _, err := uuid.Parse(req.RootID); err != nil {
		errors = append(errors, "root_id is invalid")
	}

	if len(req.TableIDs) == 0 {
		errors = append(errors, "merge needs at least two tables")
	}

	seen := map[string]bool{req.RootID: true}
	for _, id := range req.TableIDs {
		if _, err := uuid.Parse(id); err != nil {
			errors = append(errors, fmt.Sprintf("table id %q is invalid", id))
			continue
		}
		if seen[id] {
			errors = append(errors, fmt.Sprintf("table %s selected more than once", id))
		}
		seen[id] = true
	}

	return errors
}

func ValidateTransfer(ctx context.Context, from uuid.UUID, req TransferRequest) []string {
	var errors []string

	target, err := uuid.Parse(req.TargetTableID)
	if err != nil {
		errors = append(errors, "target_table_id is invalid")
		return errors
	}

	if target == from {
		errors = append(errors, "source and target table are the same")
	}

	return errors
}

func ValidateOrder(ctx context.Context, req OrderRequest) []string {
	var errors []string

	switch req.Source {
	case SourceTable:
		if _, err := uuid.Parse(req.TableID); err != nil {
			errors = append(errors, "table_id is required for table orders")
		}
	case SourceTakeaway, SourceDelivery:
		if req.TableID != "" {
			errors = append(errors, "table_id must be empty for "+req.Source+" orders")
		}
	default:
		errors = append(errors, "invalid source")
	}

	if req.Source == SourceDelivery && req.DeliveryRef == nil {
		errors = append(errors, "delivery_ref is required for delivery orders")
	}

	if len(req.Items) == 0 {
		errors = append(errors, "order has no items")
	}

	for i, it := range req.Items {
		if strings.TrimSpace(it.ProductName) == "" {
			errors = append(errors, fmt.Sprintf("items[%d].product_name is required", i))
		}
		if it.Quantity <= 0 {
			errors = append(errors, fmt.Sprintf("items[%d].quantity must be greater than 0", i))
		}
		if it.Quantity > MaxItemQuantity {
			errors = append(errors, fmt.Sprintf("items[%d].quantity cannot exceed %d", i, MaxItemQuantity))
		}
		if it.Price.IsNegative() {
			errors = append(errors, fmt.Sprintf("items[%d].price cannot be negative", i))
		}
		if it.IsIkram {
			if strings.TrimSpace(it.IkramReason) == "" {
				errors = append(errors, fmt.Sprintf("items[%d].ikram_reason is required", i))
			}
			if !it.Price.IsZero() {
				errors = append(errors, fmt.Sprintf("items[%d].price must be zero for ikram", i))
			}
		}
	}

	if req.Discount != nil {
		switch req.Discount.Type {
		case DiscountPercent, DiscountFixed:
		default:
			errors = append(errors, "invalid discount type")
		}
	}

	return errors
}

func ValidatePayment(ctx context.Context, req PaymentRequest) []string {
	var errors []string

	method := paymentmethod.ByName(req.Method)
	if method == nil {
		errors = append(errors, "invalid payment method")
	}

	if req.Amount.IsNegative() {
		errors = append(errors, "amount cannot be negative")
	}

	if req.Tip.IsNegative() {
		errors = append(errors, "tip cannot be negative")
	}

	if method != nil && req.Tip.IsPositive() {
		rules, err := method.Rules()
		if err != nil || !rules.AcceptsTip {
			errors = append(errors, ErrTipNotAccepted.Error())
		}
	}

	return errors
}

func ValidateAccept(ctx context.Context, req AcceptRequest) []string {
	var errors []string

	if req.PrepTimeMinutes < 0 {
		errors = append(errors, "prep_time_minutes cannot be negative")
	}

	return errors
}

func ValidateDeliveryStatus(ctx context.Context, req DeliveryStatusRequest) []string {
	var errors []string

	switch req.Status {
	case DeliveryPreparing, DeliveryReady, DeliveryOnTheWay, DeliveryDelivered:
	default:
		errors = append(errors, "invalid status")
	}

	return errors
}
