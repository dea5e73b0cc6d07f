package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/service"
	"stockledger/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// OrderEventQueue accepts events for background processing.
// *worker.Dispatcher implements it.
type OrderEventQueue interface {
	EnqueueOrderEvent(ctx context.Context, ev dto.OrderEvent) error
}

// OrderEventsHandler is the order system's webhook. With a queue configured
// events are acknowledged with 202 and applied by the worker pool;
// otherwise they are applied inline and the report is returned.
type OrderEventsHandler struct {
	svc     service.OrderEventService
	tracker service.TrackerService
	queue   OrderEventQueue // nil: synchronous
	rdb     *redis.Client   // nil: dead letter endpoints unavailable
}

func NewOrderEventsHandler(svc service.OrderEventService, tracker service.TrackerService, queue OrderEventQueue, rdb *redis.Client) *OrderEventsHandler {
	return &OrderEventsHandler{svc: svc, tracker: tracker, queue: queue, rdb: rdb}
}

// Receive godoc
// @Summary      Order lifecycle event
// @Description  Signed with HMAC-SHA256 of the raw body in X-Signature. Replays are no-ops.
// @Tags         order-events
// @Accept       json
// @Produce      json
// @Param        body body dto.OrderEvent true "Event"
// @Success      200  {object} dto.OrderReport
// @Success      202  {object} dto.OrderEventAccepted
// @Failure      401  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/order-events [post]
func (h *OrderEventsHandler) Receive(c *gin.Context) {
	var ev dto.OrderEvent
	if !bindAndValidate(c, &ev) {
		return
	}

	if h.queue != nil {
		if err := h.queue.EnqueueOrderEvent(c.Request.Context(), ev); err != nil {
			log.Error().Err(err).Str("order_ref", ev.Order.Ref).Msg("order_events: enqueue failed")
			c.JSON(http.StatusServiceUnavailable, apierror.New("event queue unavailable"))
			return
		}
		c.JSON(http.StatusAccepted, dto.OrderEventAccepted{OrderRef: ev.Order.Ref, Queued: true})
		return
	}

	report, err := h.svc.Process(c.Request.Context(), ev)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Tracking lists the reconciliation rows of one order.
func (h *OrderEventsHandler) Tracking(c *gin.Context) {
	ref := strings.TrimSpace(c.Param("order_ref"))
	if ref == "" {
		c.JSON(http.StatusBadRequest, apierror.New("invalid order_ref"))
		return
	}
	rows, err := h.tracker.ListForOrder(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// DeadLetters lists order events that exhausted their attempts.
func (h *OrderEventsHandler) DeadLetters(c *gin.Context) {
	if h.rdb == nil {
		c.JSON(http.StatusNotFound, apierror.New("event queue not configured"))
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}
	entries, err := worker.ListDLQ(c.Request.Context(), h.rdb, worker.QueueOrderEvents, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	total, _ := worker.DLQLength(c.Request.Context(), h.rdb, worker.QueueOrderEvents)
	c.JSON(http.StatusOK, gin.H{"total": total, "data": entries})
}

// RequeueDeadLetters puts dead order events back on the queue.
func (h *OrderEventsHandler) RequeueDeadLetters(c *gin.Context) {
	if h.rdb == nil {
		c.JSON(http.StatusNotFound, apierror.New("event queue not configured"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 {
		limit = 100
	}
	n, err := worker.RequeueDLQ(c.Request.Context(), h.rdb, worker.QueueOrderEvents, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requeued": n})
}
