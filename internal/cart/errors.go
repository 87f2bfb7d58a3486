package cart

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrItemNotFound indicates the requested row id is not in the cart.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrInvalidQuantity is returned when a quantity is not a positive number.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidDiscount is returned when discount construction fails validation.
	ErrInvalidDiscount = errors.New("invalid discount")
	// ErrInvalidAdjustment is the sentinel wrapped by InvalidAdjustmentError.
	ErrInvalidAdjustment = errors.New("invalid adjustment")
	// ErrNotLoaded indicates a save was attempted before the cart was hydrated.
	ErrNotLoaded = errors.New("cart not loaded")
	// ErrUnknownModel indicates an associate call referenced an unregistered model type.
	ErrUnknownModel = errors.New("unknown model reference")
	// ErrInvalidItem is returned when item construction fails validation.
	ErrInvalidItem = errors.New("invalid item")
	// ErrInstanceNotConfigured indicates the manager has no configuration for the name.
	ErrInstanceNotConfigured = errors.New("cart instance not configured")
)

// InvalidAdjustmentError carries per-field validation failures raised while
// constructing an Adjustment.
type InvalidAdjustmentError struct {
	Fields map[string]string
}

func (e *InvalidAdjustmentError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrInvalidAdjustment.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s (%s)", ErrInvalidAdjustment.Error(), strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match against ErrInvalidAdjustment.
func (e *InvalidAdjustmentError) Unwrap() error { return ErrInvalidAdjustment }
