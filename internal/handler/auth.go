package handler

import (
	"net/http"
	"strconv"

	"stockledger/internal/dto"
	"stockledger/internal/middleware"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ svc service.AuthService }

func NewAuthHandler(svc service.AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

// Login godoc
// @Summary Operator login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Operators Handler ────────────────────────────────────────────────────────

type OperatorsHandler struct{ svc service.AuthService }

func NewOperatorsHandler(svc service.AuthService) *OperatorsHandler {
	return &OperatorsHandler{svc: svc}
}

func (h *OperatorsHandler) Create(c *gin.Context) {
	var req dto.CreateOperatorRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateOperator(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *OperatorsHandler) List(c *gin.Context) {
	all, _ := strconv.ParseBool(c.DefaultQuery("include_inactive", "false"))
	resp, err := h.svc.ListOperators(c.Request.Context(), all)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OperatorsHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateOperatorRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateOperator(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OperatorsHandler) Deactivate(c *gin.Context) { h.setActive(c, false) }

func (h *OperatorsHandler) Reactivate(c *gin.Context) { h.setActive(c, true) }

func (h *OperatorsHandler) setActive(c *gin.Context, active bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	actor := middleware.ActorID(c)
	if actor == nil {
		respondError(c, service.ErrPermissionDenied)
		return
	}
	if err := h.svc.SetOperatorActive(c.Request.Context(), *actor, id, active); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
