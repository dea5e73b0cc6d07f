package dto

type AddMappingRequest struct {
	ProductRef int64 `json:"product_ref" validate:"required,min=1"`
	VariantRef int64 `json:"variant_ref" validate:"min=0"`
}

type MappingResponse struct {
	ID          string `json:"id"`
	StockCodeID string `json:"stock_code_id"`
	ProductRef  int64  `json:"product_ref"`
	VariantRef  int64  `json:"variant_ref"`
	CreatedAt   string `json:"created_at"`
	// Label is filled from the catalog when it is reachable.
	Label *string `json:"label,omitempty"`
	SKU   *string `json:"sku,omitempty"`
}

// AddMappingResponse reports whether the call created the mapping or found it.
type AddMappingResponse struct {
	MappingResponse
	Created bool `json:"created"`
}

type VariantCodeResponse struct {
	VariantRef int64  `json:"variant_ref"`
	Code       string `json:"code"`
}
