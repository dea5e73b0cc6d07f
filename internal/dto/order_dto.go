package dto

// Order event types accepted from the order system.
const (
	OrderEventShipped       = "shipped"
	OrderEventReturned      = "returned"
	OrderEventStatusChanged = "status_changed"
)

type OrderLine struct {
	Ref        string `json:"ref"         validate:"required,max=64"`
	ProductRef int64  `json:"product_ref" validate:"min=0"`
	VariantRef int64  `json:"variant_ref" validate:"min=0"`
	Quantity   int    `json:"quantity"    validate:"min=0,max=2147483647"`
	Name       string `json:"name"`
}

type Order struct {
	Ref   string      `json:"ref"   validate:"required,max=64"`
	Lines []OrderLine `json:"lines" validate:"dive"`
}

// OrderEvent is one lifecycle notification. EventID is optional and only
// used for log correlation; idempotency is keyed on order, line and code.
type OrderEvent struct {
	EventID   string `json:"event_id,omitempty"`
	Type      string `json:"type"       validate:"required,oneof=shipped returned status_changed"`
	Order     Order  `json:"order"      validate:"required"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status" validate:"required_if=Type status_changed"`
}

// Line outcomes reported back to the order system.
const (
	OutcomeApplied          = "applied"
	OutcomeSkippedUnmapped  = "skipped_unmapped"
	OutcomeSkippedDuplicate = "skipped_duplicate"
	OutcomeSkippedEmpty     = "skipped_empty"
	OutcomeSkippedUnshipped = "skipped_not_shipped"
	OutcomeFailed           = "failed"
)

type LineOutcome struct {
	LineRef     string `json:"line_ref"`
	Code        string `json:"code,omitempty"`
	Outcome     string `json:"outcome"`
	StockBefore *int   `json:"stock_before,omitempty"`
	StockAfter  *int   `json:"stock_after,omitempty"`
	Note        string `json:"note,omitempty"`
	Error       string `json:"error,omitempty"`
}

// OrderReport summarises one processed event. Action is empty when a
// status change matched neither the ship nor the return status.
type OrderReport struct {
	OrderRef string        `json:"order_ref"`
	Action   string        `json:"action"`
	Lines    []LineOutcome `json:"lines"`
	Failed   int           `json:"failed"`
}

// OrderEventAccepted is returned when the event was queued for later processing.
type OrderEventAccepted struct {
	OrderRef string `json:"order_ref"`
	Queued   bool   `json:"queued"`
}

type TrackingResponse struct {
	OrderRef         string  `json:"order_ref"`
	OrderLineRef     string  `json:"order_line_ref"`
	StockCodeID      string  `json:"stock_code_id"`
	Code             string  `json:"code"`
	Quantity         int     `json:"quantity"`
	ShippedProcessed bool    `json:"shipped_processed"`
	ReturnProcessed  bool    `json:"return_processed"`
	ShippedAt        *string `json:"shipped_at"`
	ReturnedAt       *string `json:"returned_at"`
}
