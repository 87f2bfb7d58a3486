// Package api exposes the cart engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cart-engine/internal/cart"
	"github.com/noah-isme/cart-engine/internal/catalog"
	"github.com/noah-isme/cart-engine/internal/common"
	"github.com/noah-isme/cart-engine/internal/lock"
	"github.com/noah-isme/cart-engine/internal/money"
	"github.com/noah-isme/cart-engine/internal/obs"
)

// Handler wires cart sessions to HTTP routes.
type Handler struct {
	Carts    *cart.Manager
	Locker   lock.Locker
	Source   catalog.Source
	Models   cart.ModelRegistry
	Validate *validator.Validate
	Logger   zerolog.Logger
}

// Routes mounts all cart endpoints on a new router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/carts/{instance}/{cartID}", func(c chi.Router) {
		c.Get("/", h.Get)
		c.Delete("/", h.Destroy)
		c.Post("/items", h.AddItem)
		c.Patch("/items/{rowID}", h.PatchItem)
		c.Delete("/items/{rowID}", h.RemoveItem)
		c.Put("/items/{rowID}/discount", h.SetDiscount)
		c.Delete("/items/{rowID}/discount", h.ClearDiscount)
		c.Post("/items/{rowID}/associate", h.AssociateItem)
		c.Post("/adjustments", h.AddAdjustment)
		c.Delete("/adjustments", h.ClearAdjustments)
		c.Delete("/adjustments/{name}", h.RemoveAdjustment)
	})
	return r
}

var defaultValidate = validator.New()

// validate never writes h.Validate: handlers are shared across goroutines.
func (h *Handler) validate() *validator.Validate {
	if h.Validate == nil {
		return defaultValidate
	}
	return h.Validate
}

func (h *Handler) session(r *http.Request) (*cart.Cart, string, string, error) {
	instance := chi.URLParam(r, "instance")
	cartID := chi.URLParam(r, "cartID")
	c, err := h.Carts.Session(instance, cartID)
	if err != nil {
		return nil, instance, cartID, err
	}
	if h.Models != nil {
		c.SetModelRegistry(h.Models)
	}
	return c, instance, cartID, nil
}

// withLock serializes the mutation per cart. Without a Redis client the
// handler runs unlocked, which single-process deployments and tests use.
func (h *Handler) withLock(r *http.Request, instance, cartID string, fn func() error) error {
	if h.Locker.R == nil {
		return fn()
	}
	return h.Locker.WithCartLock(r.Context(), instance, cartID, func(context.Context) error {
		return fn()
	})
}

type moneyPayload struct {
	Amount   int64  `json:"amount" validate:"gte=0"`
	Currency string `json:"currency" validate:"required,len=3"`
}

func (m *moneyPayload) money() money.Money {
	return money.New(m.Amount, strings.ToUpper(m.Currency))
}

type addItemRequest struct {
	ProductID string            `json:"productId"`
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Qty       int               `json:"qty" validate:"required,gt=0"`
	Price     *moneyPayload     `json:"price"`
	Options   map[string]string `json:"options"`
	Meta      map[string]any    `json:"meta"`
}

// Get returns the full cart view.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, instance, _, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	view, err := cartView(r.Context(), c)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.observeTotal(r.Context(), instance, c)
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Destroy deletes the stored cart.
func (h *Handler) Destroy(w http.ResponseWriter, r *http.Request) {
	c, instance, cartID, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	err = h.withLock(r, instance, cartID, func() error {
		return c.Destroy(r.Context())
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.countOp(instance, "destroy", "ok")
	w.WriteHeader(http.StatusNoContent)
}

// AddItem adds a line item, either resolved from the product catalog by
// productId or supplied inline with id, name, and price.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, instance, cartID, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var item *cart.Item
	err = h.withLock(r, instance, cartID, func() error {
		options := cart.Options(payload.Options)
		meta := cart.Meta(payload.Meta)
		if payload.ProductID != "" {
			if h.Source == nil {
				return errors.New("api: product source not configured")
			}
			product, err := h.Source.Product(r.Context(), payload.ProductID, options)
			if err != nil {
				return err
			}
			item, err = c.AddBuyable(r.Context(), product, payload.Qty, options, meta)
			return err
		}
		if payload.ID == "" || payload.Name == "" || payload.Price == nil {
			return errInlineItemIncomplete
		}
		var addErr error
		item, addErr = c.Add(r.Context(), cart.ItemSpec{
			ID:      payload.ID,
			Name:    payload.Name,
			Qty:     payload.Qty,
			Price:   payload.Price.money(),
			Options: options,
			Meta:    meta,
		})
		return addErr
	})
	if err != nil {
		h.countOp(instance, "add_item", "error")
		h.writeError(w, err)
		return
	}
	h.countOp(instance, "add_item", "ok")
	common.JSON(w, http.StatusCreated, map[string]any{"data": itemView(item)})
}

type patchItemRequest struct {
	Qty     *int               `json:"qty"`
	Name    *string            `json:"name"`
	Price   *moneyPayload      `json:"price"`
	ID      *string            `json:"id"`
	Options *map[string]string `json:"options"`
	Meta    *map[string]any    `json:"meta"`
}

// PatchItem applies a partial update. Setting qty to zero removes the line.
func (h *Handler) PatchItem(w http.ResponseWriter, r *http.Request) {
	var payload patchItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, instance, cartID, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rowID := chi.URLParam(r, "rowID")

	patch := cart.ItemPatch{
		ID:   payload.ID,
		Qty:  payload.Qty,
		Name: payload.Name,
	}
	if payload.Price != nil {
		price := payload.Price.money()
		patch.Price = &price
	}
	if payload.Options != nil {
		options := cart.Options(*payload.Options)
		patch.Options = &options
	}
	if payload.Meta != nil {
		meta := cart.Meta(*payload.Meta)
		patch.Meta = &meta
	}

	var item *cart.Item
	err = h.withLock(r, instance, cartID, func() error {
		var patchErr error
		item, patchErr = c.Patch(r.Context(), rowID, patch)
		return patchErr
	})
	if err != nil {
		h.countOp(instance, "patch_item", "error")
		h.writeError(w, err)
		return
	}
	h.countOp(instance, "patch_item", "ok")
	if item == nil {
		// zero quantity removed the line
		w.WriteHeader(http.StatusNoContent)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": itemView(item)})
}

// RemoveItem deletes a line item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, instance, cartID, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rowID := chi.URLParam(r, "rowID")
	err = h.withLock(r, instance, cartID, func() error {
		return c.Remove(r.Context(), rowID)
	})
	if err != nil {
		h.countOp(instance, "remove_item", "error")
		h.writeError(w, err)
		return
	}
	h.countOp(instance, "remove_item", "ok")
	w.WriteHeader(http.StatusNoContent)
}

type discountRequest struct {
	Kind    string        `json:"kind" validate:"required,oneof=fixed percentage"`
	Percent *float64      `json:"percent" validate:"omitempty,gte=0,lte=100"`
	Value   *moneyPayload `json:"value"`
	Label   string        `json:"label"`
}

// SetDiscount attaches a per-item discount to a line.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	var payload discountRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, instance, cartID, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rowID := chi.URLParam(r, "rowID")

	var discount *cart.Discount
	switch payload.Kind {
	case "fixed":
		if payload.Value == nil {
			h.writeError(w, errDiscountValueRequired)
			return
		}
		discount, err = cart.NewFixedDiscount(payload.Value.money(), payload.Label)
	case "percentage":
		if payload.Percent == nil {
			h.writeError(w, errDiscountPercentRequired)
			return
		}
		discount, err = cart.NewPercentageDiscount(*payload.Percent, payload.Label)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	var item *cart.Item
	err = h.withLock(r, instance, cartID, func() error {
		var updateErr error
		item, updateErr = c.UpdateWith(r.Context(), rowID, func(it *cart.Item) error {
			return it.SetDiscount(discount)
		})
		return updateErr
	})
	if err != nil {
		h.countOp(instance, "set_discount", "error")
		h.writeError(w, err)
		return
	}
	h.countOp(instance, "set_discount", "ok")
	common.JSON(w, http.StatusOK, map[string]any{"data": itemView(item)})
}

// ClearDiscount removes a line's discount.
func (h *Handler) ClearDiscount(w http.ResponseWriter, r *http.Request) {
	c, instance, cartID, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rowID := chi.URLParam(r, "rowID")
	var item *cart.Item
	err = h.withLock(r, instance, cartID, func() error {
		var updateErr error
		item, updateErr = c.UpdateWith(r.Context(), rowID, func(it *cart.Item) error {
			it.ClearDiscount()
			return nil
		})
		return updateErr
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": itemView(item)})
}

type associateRequest struct {
	ModelType string `json:"modelType" validate:"required"`
	ModelID   string `json:"modelId"`
}

// AssociateItem records a model back-reference on a line.
func (h *Handler) AssociateItem(w http.ResponseWriter, r *http.Request) {
	var payload associateRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, instance, cartID, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rowID := chi.URLParam(r, "rowID")
	err = h.withLock(r, instance, cartID, func() error {
		return c.Associate(r.Context(), rowID, payload.ModelType, payload.ModelID)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustmentRequest struct {
	Name       string        `json:"name" validate:"required"`
	Type       string        `json:"type" validate:"required"`
	Percentage *float64      `json:"percentage"`
	Value      *moneyPayload `json:"value"`
	Order      *int          `json:"order"`
}

// AddAdjustment appends a cart-level adjustment.
func (h *Handler) AddAdjustment(w http.ResponseWriter, r *http.Request) {
	var payload adjustmentRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, instance, cartID, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	attrs := cart.AdjustmentAttributes{
		Name:       payload.Name,
		Type:       payload.Type,
		Percentage: payload.Percentage,
		Order:      payload.Order,
	}
	if payload.Value != nil {
		value := payload.Value.money()
		attrs.Value = &value
	}
	adjustment, err := cart.NewAdjustment(attrs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	err = h.withLock(r, instance, cartID, func() error {
		return c.AddAdjustment(r.Context(), adjustment)
	})
	if err != nil {
		h.countOp(instance, "add_adjustment", "error")
		h.writeError(w, err)
		return
	}
	h.countOp(instance, "add_adjustment", "ok")
	common.JSON(w, http.StatusCreated, map[string]any{"data": adjustmentView(adjustment)})
}

// RemoveAdjustment drops every adjustment with the given name.
func (h *Handler) RemoveAdjustment(w http.ResponseWriter, r *http.Request) {
	c, instance, cartID, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	err = h.withLock(r, instance, cartID, func() error {
		return c.RemoveAdjustmentWithName(r.Context(), name)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearAdjustments removes adjustments, optionally restricted to ?type=.
func (h *Handler) ClearAdjustments(w http.ResponseWriter, r *http.Request) {
	c, instance, cartID, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	typ := strings.TrimSpace(r.URL.Query().Get("type"))
	err = h.withLock(r, instance, cartID, func() error {
		if typ != "" {
			return c.RemoveAdjustmentsWithType(r.Context(), cart.AdjustmentType(typ))
		}
		return c.ClearAdjustments(r.Context())
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return false
	}
	if err := h.validate().Struct(dst); err != nil {
		details := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid request", details)
		return false
	}
	return true
}

func (h *Handler) countOp(instance, op, result string) {
	if obs.CartOperationsTotal != nil {
		obs.CartOperationsTotal.WithLabelValues(instance, op, result).Inc()
	}
}

func (h *Handler) observeTotal(ctx context.Context, instance string, c *cart.Cart) {
	if obs.CartTotalAmount == nil {
		return
	}
	if total, err := c.GrandTotal(ctx); err == nil {
		obs.CartTotalAmount.WithLabelValues(instance, total.Currency()).Observe(float64(total.Amount()))
	}
}
