package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateStockCodeRequest struct {
	Code            string `json:"code"             validate:"required,min=1,max=100"`
	Name            string `json:"name"             validate:"max=255"`
	InitialQuantity int    `json:"initial_quantity" validate:"min=0,max=2147483647"`
}

type UpdateStockCodeRequest struct {
	Name string `json:"name" validate:"max=255"`
}

// AdjustStockRequest is the manual adjustment issued by an operator.
type AdjustStockRequest struct {
	Action   string `json:"action"   validate:"required,oneof=add remove"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=2147483647"`
	Comment  string `json:"comment"  validate:"max=1000"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type StockCodeFilter struct {
	Search string `form:"search"`
	SortBy string `form:"sort_by" validate:"omitempty,oneof=code name quantity"`
	Order  string `form:"order"   validate:"omitempty,oneof=asc desc"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=20" validate:"min=1,max=500"`
}

// HistoryFilter dates use YYYY-MM-DD; both ends are inclusive days.
type HistoryFilter struct {
	StockCodeID string `form:"stock_code_id" validate:"omitempty,uuid"`
	Code        string `form:"code"`
	Kind        string `form:"kind"      validate:"omitempty,oneof=add remove order_shipped order_returned"`
	OrderRef    string `form:"order_ref"`
	DateFrom    string `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo      string `form:"date_to"   validate:"omitempty,datetime=2006-01-02"`
	Page        int    `form:"page,default=1"   validate:"min=1"`
	Limit       int    `form:"limit,default=20" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type StockCodeResponse struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	Name            string `json:"name"`
	CurrentQuantity int    `json:"current_quantity"`
	MappingCount    int    `json:"mapping_count,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type StockCodeListResponse struct {
	Data       []StockCodeResponse `json:"data"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
	TotalPages int                 `json:"total_pages"`
}

type AdjustStockResponse struct {
	StockCodeID string `json:"stock_code_id"`
	Code        string `json:"code"`
	StockBefore int    `json:"stock_before"`
	StockAfter  int    `json:"stock_after"`
}

type HistoryEntryResponse struct {
	ID          string  `json:"id"`
	StockCodeID string  `json:"stock_code_id"`
	Code        string  `json:"code"`
	ChangeKind  string  `json:"change_kind"`
	Quantity    int     `json:"quantity"`
	StockBefore int     `json:"stock_before"`
	StockAfter  int     `json:"stock_after"`
	OrderRef    *string `json:"order_ref"`
	Comment     string  `json:"comment"`
	ActorID     *string `json:"actor_id"`
	CreatedAt   string  `json:"created_at"`
}

type HistoryListResponse struct {
	Data       []HistoryEntryResponse `json:"data"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"total_pages"`
}
