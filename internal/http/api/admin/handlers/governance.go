package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/limitwarden/limitwarden/internal/db"
	"github.com/limitwarden/limitwarden/internal/governance"
	"github.com/limitwarden/limitwarden/internal/models"
)

// GovernanceHandler manages admin endpoints for the approval queue.
type GovernanceHandler struct {
	db    *gorm.DB          // Database handle for entry listing.
	queue *governance.Queue // Queue applying decisions.
}

// NewGovernanceHandler constructs a governance handler.
func NewGovernanceHandler(conn *gorm.DB, queue *governance.Queue) *GovernanceHandler {
	return &GovernanceHandler{db: conn, queue: queue}
}

// List returns governance entries, filtered by status, tier, and proposal
// action. Status defaults to pending.
func (h *GovernanceHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.GovernanceEntry{})

	switch status := strings.TrimSpace(c.Query("status")); status {
	case "", "pending":
		q = q.Where("status = ?", models.GovernancePending)
	case "approved":
		q = q.Where("status = ?", models.GovernanceApproved)
	case "rejected":
		q = q.Where("status = ?", models.GovernanceRejected)
	case "expired":
		q = q.Where("status = ?", models.GovernanceExpired)
	case "all":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	if tierName := strings.TrimSpace(c.Query("tier")); tierName != "" {
		q = q.Where("tier = ?", tierName)
	}
	if endpoint := strings.TrimSpace(c.Query("endpoint")); endpoint != "" {
		expr, arg := db.ContainsFold(h.db, "endpoint", endpoint)
		q = q.Where(expr, arg)
	}
	if action := strings.TrimSpace(c.Query("action")); action != "" {
		q = q.Where(db.JSONFieldEquals(h.db, "proposal", "decision.action"), action)
	}

	var rows []models.GovernanceEntry
	if errFind := q.Order("created_at ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list entries failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatEntry(&row))
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

// Get returns one entry by ID.
func (h *GovernanceHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	entry, errGet := h.queue.Get(c.Request.Context(), id)
	if errGet != nil {
		if errors.Is(errGet, governance.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatEntry(entry))
}

// Approve applies a pending entry. Repeated approvals are no-ops.
func (h *GovernanceHandler) Approve(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	committed, errApprove := h.queue.Approve(c.Request.Context(), id, h.decidedBy(c))
	if errApprove != nil {
		if errors.Is(errApprove, governance.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if errors.Is(errApprove, governance.ErrAlreadyDecided) {
			c.JSON(http.StatusConflict, gin.H{"error": "already decided"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "approve failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"rps":     committed.CurrentLimit,
		"burst":   committed.BurstCapacity,
		"version": committed.Version,
	})
}

// Reject discards a pending entry. Repeated rejections are no-ops.
func (h *GovernanceHandler) Reject(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if errReject := h.queue.Reject(c.Request.Context(), id, h.decidedBy(c)); errReject != nil {
		if errors.Is(errReject, governance.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if errors.Is(errReject, governance.ErrAlreadyDecided) {
			c.JSON(http.StatusConflict, gin.H{"error": "already decided"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reject failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ApproveAll applies every pending entry.
func (h *GovernanceHandler) ApproveAll(c *gin.Context) {
	applied, errApprove := h.queue.ApproveAll(c.Request.Context(), h.decidedBy(c))
	if errApprove != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "approve all failed", "applied": applied})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "applied": applied})
}

// decidedBy names the acting operator from the auth middleware context.
func (h *GovernanceHandler) decidedBy(c *gin.Context) string {
	if username, ok := c.Get("adminUsername"); ok {
		if name, okStr := username.(string); okStr && name != "" {
			return name
		}
	}
	if id, ok := c.Get("adminID"); ok {
		if adminID, okID := id.(uint64); okID {
			return "admin-" + strconv.FormatUint(adminID, 10)
		}
	}
	return "operator"
}

// formatEntry converts a governance entry into a response payload.
func (h *GovernanceHandler) formatEntry(e *models.GovernanceEntry) gin.H {
	return gin.H{
		"id":         e.ID,
		"tier":       e.Tier,
		"endpoint":   e.Endpoint,
		"proposal":   e.Proposal,
		"status":     e.Status.String(),
		"decided_by": e.DecidedBy,
		"decided_at": e.DecidedAt,
		"created_at": e.CreatedAt,
		"updated_at": e.UpdatedAt,
	}
}
