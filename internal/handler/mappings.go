package handler

import (
	"net/http"

	"stockledger/internal/dto"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

type MappingsHandler struct{ svc service.MappingService }

func NewMappingsHandler(svc service.MappingService) *MappingsHandler {
	return &MappingsHandler{svc: svc}
}

// Add returns 201 when the mapping is new and 200 when it already existed.
func (h *MappingsHandler) Add(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AddMappingRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddMapping(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

func (h *MappingsHandler) List(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListMappings(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MappingsHandler) Remove(c *gin.Context) {
	id, ok := paramID(c, "mapping_id")
	if !ok {
		return
	}
	if err := h.svc.RemoveMapping(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
