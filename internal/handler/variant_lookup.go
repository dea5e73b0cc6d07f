package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// variantCodeCacheTTL is short because remapping a variant does not purge
// the cache.
const variantCodeCacheTTL = time.Minute

// VariantLookupHandler answers "which stock code does this variant use" for
// storefront and order-system callers. rdb may be nil.
type VariantLookupHandler struct {
	svc service.MappingService
	rdb *redis.Client
}

func NewVariantLookupHandler(svc service.MappingService, rdb *redis.Client) *VariantLookupHandler {
	return &VariantLookupHandler{svc: svc, rdb: rdb}
}

// CodeForVariant godoc
// @Summary Stock code for a catalog variant
// @Tags lookup
// @Produce json
// @Param variant_ref path int true "Catalog variant reference"
// @Success 200 {object} dto.VariantCodeResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/variants/{variant_ref}/code [get]
func (h *VariantLookupHandler) CodeForVariant(c *gin.Context) {
	ref, err := strconv.ParseInt(c.Param("variant_ref"), 10, 64)
	if err != nil || ref <= 0 {
		c.JSON(http.StatusBadRequest, apierror.New("invalid variant_ref"))
		return
	}
	ctx := c.Request.Context()
	cacheKey := "variant_code:" + strconv.FormatInt(ref, 10)

	if resp, ok := h.cached(ctx, cacheKey); ok {
		c.JSON(http.StatusOK, resp)
		return
	}

	resp, err := h.svc.CodeForVariant(ctx, ref)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.rdb != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := h.rdb.Set(ctx, cacheKey, data, variantCodeCacheTTL).Err(); err != nil {
				log.Debug().Err(err).Str("key", cacheKey).Msg("variant_lookup: cache write failed")
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VariantLookupHandler) cached(ctx context.Context, key string) (*dto.VariantCodeResponse, bool) {
	if h.rdb == nil {
		return nil, false
	}
	raw, err := h.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var resp dto.VariantCodeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}
