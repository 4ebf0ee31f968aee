package delivery

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"followq-backend/internal/queue/domain"
	"followq-backend/internal/queue/usecase"

	"github.com/gin-gonic/gin"
)

// QueueHandler handles follow-up queue HTTP requests
type QueueHandler struct {
	queueUsecase usecase.QueueUsecase
}

// NewQueueHandler creates a new QueueHandler
func NewQueueHandler(queueUsecase usecase.QueueUsecase) *QueueHandler {
	return &QueueHandler{
		queueUsecase: queueUsecase,
	}
}

// respondError maps the store's error kinds onto HTTP statuses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Item is being modified by another request"})
	case errors.Is(err, domain.ErrCollaborator):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func actor(c *gin.Context) string {
	if a := c.GetHeader("X-Actor"); a != "" {
		return a
	}
	return "api"
}

// SnoozeRequest represents the request body for snoozing an item
type SnoozeRequest struct {
	Until  time.Time `json:"until" binding:"required"`
	Reason string    `json:"reason"`
}

// WaitingRequest represents the request body for marking an item waiting
type WaitingRequest struct {
	WaitingOn string `json:"waiting_on" binding:"required"`
	Reason    string `json:"reason"`
}

// EscalateRequest optionally pins the escalated priority
type EscalateRequest struct {
	Priority string `json:"priority"`
}

// BulkSnoozeRequest represents the request body for bulk snoozing
type BulkSnoozeRequest struct {
	IDs    []string  `json:"ids" binding:"required"`
	Until  time.Time `json:"until" binding:"required"`
	Reason string    `json:"reason"`
}

// BulkCompleteRequest represents the request body for bulk completion
type BulkCompleteRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// AcceptSuggestionRequest carries the resurfacing time the user chose
type AcceptSuggestionRequest struct {
	Until time.Time `json:"until" binding:"required"`
}

// AddItem admits a classified email into the queue
// POST /api/queue
func (h *QueueHandler) AddItem(c *gin.Context) {
	var req usecase.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Actor == "" {
		req.Actor = actor(c)
	}

	item, err := h.queueUsecase.Add(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetItems returns a filtered page of the queue in canonical order
// GET /api/queue?status=active,snoozed&priority=high&category=ops&deadline_status=overdue&search=invoice&limit=50&offset=0
func (h *QueueHandler) GetItems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := domain.ItemFilter{
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	}
	for _, s := range splitParam(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.Status(s))
	}
	for _, p := range splitParam(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.Priority(p))
	}
	filter.Categories = splitParam(c.Query("category"))
	for _, d := range splitParam(c.Query("deadline_status")) {
		filter.DeadlineStatuses = append(filter.DeadlineStatuses, domain.DeadlineStatus(d))
	}

	items, total, err := h.queueUsecase.Query(filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []*domain.QueueItem{}
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
	})
}

// GetItemByID returns a single queue item
// GET /api/queue/:id
func (h *QueueHandler) GetItemByID(c *gin.Context) {
	item, err := h.queueUsecase.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// GetItemHistory returns an item's audit trail, newest first
// GET /api/queue/:id/history?limit=20
func (h *QueueHandler) GetItemHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	// History exists for removed items too, so presence is not checked first.
	entries, err := h.queueUsecase.History(c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []*domain.QueueHistory{}
	}
	c.JSON(http.StatusOK, gin.H{
		"history": entries,
		"count":   len(entries),
	})
}

// UpdateItem merges changed fields into an item
// PUT /api/queue/:id
func (h *QueueHandler) UpdateItem(c *gin.Context) {
	var req usecase.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.queueUsecase.Update(c.Param("id"), req, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteItem removes an item that already reached a terminal state
// DELETE /api/queue/:id
func (h *QueueHandler) DeleteItem(c *gin.Context) {
	if err := h.queueUsecase.Remove(c.Param("id"), actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item removed"})
}

// SnoozeItem snoozes an item until the given time
// POST /api/queue/:id/snooze
func (h *QueueHandler) SnoozeItem(c *gin.Context) {
	var req SnoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.queueUsecase.Snooze(c.Param("id"), req.Until, req.Reason, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// UnsnoozeItem returns a snoozed item to the active queue early
// POST /api/queue/:id/unsnooze
func (h *QueueHandler) UnsnoozeItem(c *gin.Context) {
	item, err := h.queueUsecase.Unsnooze(c.Param("id"), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// CompleteItem marks an item handled
// POST /api/queue/:id/complete
func (h *QueueHandler) CompleteItem(c *gin.Context) {
	item, err := h.queueUsecase.Complete(c.Param("id"), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// MarkWaiting parks an item on an external party
// POST /api/queue/:id/waiting
func (h *QueueHandler) MarkWaiting(c *gin.Context) {
	var req WaitingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.queueUsecase.MarkWaiting(c.Param("id"), req.WaitingOn, req.Reason, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// MarkReplyReceived reactivates a waiting item after the reply arrived
// POST /api/queue/:id/reply-received
func (h *QueueHandler) MarkReplyReceived(c *gin.Context) {
	item, err := h.queueUsecase.MarkReplyReceived(c.Param("id"), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// EscalateItem escalates an item, bumping its priority and recomputing its deadline
// POST /api/queue/:id/escalate
func (h *QueueHandler) EscalateItem(c *gin.Context) {
	var req EscalateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	item, err := h.queueUsecase.Escalate(c.Param("id"), domain.Priority(req.Priority), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// SuggestSnooze asks the suggestion engine for a resurfacing time
// GET /api/queue/:id/suggestion
func (h *QueueHandler) SuggestSnooze(c *gin.Context) {
	suggestion, err := h.queueUsecase.SuggestSnooze(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

// AcceptSuggestion snoozes the item until the chosen time
// POST /api/queue/:id/suggestion/accept
func (h *QueueHandler) AcceptSuggestion(c *gin.Context) {
	var req AcceptSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.queueUsecase.AcceptSuggestion(c.Param("id"), req.Until, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// GetPresets lists the quick snooze presets
// GET /api/queue/presets
func (h *QueueHandler) GetPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": h.queueUsecase.QuickPresets()})
}

// BulkSnooze snoozes many items with per-item outcomes
// POST /api/queue/bulk/snooze
func (h *QueueHandler) BulkSnooze(c *gin.Context) {
	var req BulkSnoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must not be empty"})
		return
	}

	c.JSON(http.StatusOK, h.queueUsecase.BulkSnooze(req.IDs, req.Until, req.Reason, actor(c)))
}

// BulkComplete completes many items with per-item outcomes
// POST /api/queue/bulk/complete
func (h *QueueHandler) BulkComplete(c *gin.Context) {
	var req BulkCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must not be empty"})
		return
	}

	c.JSON(http.StatusOK, h.queueUsecase.BulkComplete(req.IDs, actor(c)))
}

// GetStatistics returns the queue aggregate
// GET /api/queue/statistics?force=true
func (h *QueueHandler) GetStatistics(c *gin.Context) {
	force := c.Query("force") == "true"

	stats, err := h.queueUsecase.Statistics(force)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
