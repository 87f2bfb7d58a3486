package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/noah-isme/cart-engine/internal/cart"
	"github.com/noah-isme/cart-engine/internal/catalog"
	"github.com/noah-isme/cart-engine/internal/common"
	"github.com/noah-isme/cart-engine/internal/money"
)

var (
	errInlineItemIncomplete    = errors.New("api: inline items need id, name, and price")
	errDiscountValueRequired   = errors.New("api: fixed discounts need a value")
	errDiscountPercentRequired = errors.New("api: percentage discounts need a percent")
)

func cartView(ctx context.Context, c *cart.Cart) (map[string]any, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return nil, err
	}
	subtotal, err := c.Subtotal(ctx)
	if err != nil {
		return nil, err
	}
	tax, err := c.Tax(ctx)
	if err != nil {
		return nil, err
	}
	total, err := c.Total(ctx)
	if err != nil {
		return nil, err
	}
	grand, err := c.GrandTotal(ctx)
	if err != nil {
		return nil, err
	}
	adjustments, err := c.Adjustments(ctx)
	if err != nil {
		return nil, err
	}
	count, err := c.Count(ctx)
	if err != nil {
		return nil, err
	}

	itemViews := make([]map[string]any, 0, len(items))
	for _, it := range items {
		itemViews = append(itemViews, itemView(it))
	}
	adjustmentViews := make([]map[string]any, 0, len(adjustments))
	for _, adj := range adjustments {
		adjustmentViews = append(adjustmentViews, adjustmentView(adj))
	}
	return map[string]any{
		"currency":    c.Currency(),
		"count":       count,
		"items":       itemViews,
		"adjustments": adjustmentViews,
		"totals": map[string]any{
			"subtotal":   subtotal,
			"tax":        tax,
			"total":      total,
			"grandTotal": grand,
		},
	}, nil
}

func itemView(it *cart.Item) map[string]any {
	view := map[string]any{
		"rowId":        it.RowID(),
		"id":           it.ID(),
		"name":         it.Name(),
		"qty":          it.Quantity(),
		"unitPrice":    it.UnitPrice(),
		"tax":          it.Tax(),
		"priceWithTax": it.PriceWithTax(),
		"subtotal":     it.Subtotal(),
		"taxTotal":     it.TaxTotal(),
		"total":        it.Total(),
	}
	if options := it.Options(); len(options) > 0 {
		view["options"] = options
	}
	if meta := it.Meta(); len(meta) > 0 {
		view["meta"] = meta
	}
	if it.HasDiscount() {
		discount := map[string]any{
			"kind":  string(it.Discount().Kind()),
			"label": it.Discount().Label(),
		}
		if amount, err := it.DiscountAmount(); err == nil {
			discount["amount"] = amount
		}
		view["discount"] = discount
		if discounted, err := it.DiscountedPrice(); err == nil {
			view["discountedPrice"] = discounted
		}
	}
	if modelType, modelID := it.ModelRef(); modelType != "" {
		view["model"] = map[string]string{"type": modelType, "id": modelID}
	}
	return view
}

func adjustmentView(adj *cart.Adjustment) map[string]any {
	view := map[string]any{
		"name":  adj.Name(),
		"type":  string(adj.Type()),
		"order": adj.Order(),
	}
	if adj.IsPercentage() {
		view["percentage"] = float64(adj.PercentBps()) / 100
	} else {
		view["value"] = adj.Value()
	}
	return view
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var invalid *cart.InvalidAdjustmentError
	switch {
	case errors.As(err, &invalid):
		details := map[string]any{}
		for field, message := range invalid.Fields {
			details[field] = message
		}
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid adjustment", details)
	case errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, catalog.ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, cart.ErrInstanceNotConfigured):
		common.JSONError(w, http.StatusNotFound, "UNKNOWN_INSTANCE", err.Error(), nil)
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidItem),
		errors.Is(err, cart.ErrInvalidDiscount),
		errors.Is(err, cart.ErrUnknownModel),
		errors.Is(err, money.ErrCurrencyMismatch),
		errors.Is(err, errInlineItemIncomplete),
		errors.Is(err, errDiscountValueRequired),
		errors.Is(err, errDiscountPercentRequired):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		h.Logger.Error().Err(err).Msg("cart request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
