package models

import "fmt"

// ValidationError reports malformed or missing input. No side effects have
// happened when one is returned.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// AdmissionDeniedError is returned by the availability gate. Reason is one of
// the buyer-facing causes and is safe to surface verbatim.
type AdmissionDeniedError struct {
	Reason string
}

func (e *AdmissionDeniedError) Error() string {
	return e.Reason
}

// InsufficientStockError names the first order line that cannot be covered by
// the item's remaining stock.
type InsufficientStockError struct {
	ItemID    int64
	Name      string
	Remaining int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q (item %d): %d remaining", e.Name, e.ItemID, e.Remaining)
}

// ItemUnavailableError reports an order line whose item the seller has turned
// off. Distinct from InsufficientStockError: the item may have plenty of
// stock and still be unavailable.
type ItemUnavailableError struct {
	ItemID int64
	Name   string
}

func (e *ItemUnavailableError) Error() string {
	return fmt.Sprintf("%q (item %d) is not available", e.Name, e.ItemID)
}

// InvalidTransitionError reports an edge not present in the status graph, or
// one lost to a concurrent transition.
type InvalidTransitionError struct {
	OrderID int64
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %d: invalid transition %s -> %s", e.OrderID, e.From, e.To)
}

// NotFoundError reports an unknown order, item or seller.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// AuthorizationError is deliberately detail-free: callers get a generic
// denial, not the rule that tripped.
type AuthorizationError struct{}

func (e *AuthorizationError) Error() string {
	return "not permitted"
}
