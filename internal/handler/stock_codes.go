package handler

import (
	"net/http"

	"stockledger/internal/dto"
	"stockledger/internal/middleware"
	"stockledger/internal/model"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

type StockCodesHandler struct{ svc service.LedgerService }

func NewStockCodesHandler(svc service.LedgerService) *StockCodesHandler {
	return &StockCodesHandler{svc: svc}
}

// Create godoc
// @Summary      Create a stock code
// @Description  Creates the code and, for a positive initial quantity, its first history entry.
// @Tags         stock-codes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateStockCodeRequest true "Stock code"
// @Success      201  {object} dto.StockCodeResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/stock-codes [post]
func (h *StockCodesHandler) Create(c *gin.Context) {
	var req dto.CreateStockCodeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateCode(c.Request.Context(), req, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary      List stock codes
// @Tags         stock-codes
// @Produce      json
// @Security     BearerAuth
// @Param        search  query string false "Substring of code or name"
// @Param        sort_by query string false "code | name | quantity"
// @Param        order   query string false "asc | desc"
// @Param        page    query int    false "Page (default 1)"
// @Param        limit   query int    false "Page size (default 20, max 500)"
// @Success      200 {object} dto.StockCodeListResponse
// @Router       /v1/stock-codes [get]
func (h *StockCodesHandler) List(c *gin.Context) {
	var filter dto.StockCodeFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListCodes(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockCodesHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetCode(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockCodesHandler) GetByCode(c *gin.Context) {
	resp, err := h.svc.GetCodeByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockCodesHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateStockCodeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateName(c.Request.Context(), id, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete removes the code and its mappings; history is kept.
func (h *StockCodesHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteCode(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Adjust godoc
// @Summary      Manual stock adjustment
// @Tags         stock-codes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                 true "Stock code UUID"
// @Param        body body dto.AdjustStockRequest true "Adjustment"
// @Success      200  {object} dto.AdjustStockResponse
// @Failure      404  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/stock-codes/{id}/adjust [post]
func (h *StockCodesHandler) Adjust(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	res, err := h.svc.Adjust(c.Request.Context(), service.AdjustParams{
		StockCodeID: id,
		Quantity:    req.Quantity,
		Kind:        model.ChangeKind(req.Action),
		Comment:     req.Comment,
		ActorID:     middleware.ActorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AdjustStockResponse{
		StockCodeID: res.StockCodeID.String(),
		Code:        res.Code,
		StockBefore: res.StockBefore,
		StockAfter:  res.StockAfter,
	})
}
