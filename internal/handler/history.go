package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"stockledger/internal/dto"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HistoryHandler serves the append-only stock history.
type HistoryHandler struct {
	svc service.LedgerService
}

func NewHistoryHandler(svc service.LedgerService) *HistoryHandler {
	return &HistoryHandler{svc: svc}
}

// List godoc
// @Summary      Stock history
// @Description  Immutable quantity changes, newest first.
// @Tags         history
// @Security     BearerAuth
// @Param        stock_code_id query string false "Stock code UUID"
// @Param        code          query string false "Stock code"
// @Param        kind          query string false "add | remove | order_shipped | order_returned"
// @Param        order_ref     query string false "Order reference"
// @Param        date_from     query string false "YYYY-MM-DD (inclusive)"
// @Param        date_to       query string false "YYYY-MM-DD (inclusive)"
// @Param        page          query int    false "Page (default 1)"
// @Param        limit         query int    false "Page size (default 20, max 500)"
// @Success      200 {object} dto.HistoryListResponse
// @Failure      422 {object} apierror.ValidationError
// @Router       /v1/history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	var filter dto.HistoryFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListHistory(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Export streams the filtered history as an XLSX attachment. The workbook is
// built in memory first so a failure still yields a JSON error.
func (h *HistoryHandler) Export(c *gin.Context) {
	var filter dto.HistoryFilter
	if !bindQuery(c, &filter) {
		return
	}
	var buf bytes.Buffer
	if err := h.svc.ExportHistory(c.Request.Context(), filter, &buf); err != nil {
		respondError(c, err)
		return
	}
	name := fmt.Sprintf("stock-history-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
