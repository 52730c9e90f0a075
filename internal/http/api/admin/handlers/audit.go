package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/limitwarden/limitwarden/internal/db"
	"github.com/limitwarden/limitwarden/internal/models"
)

// Audit paging bounds.
const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500
)

// AuditHandler lists decision history.
type AuditHandler struct {
	db *gorm.DB // Database handle for audit records.
}

// NewAuditHandler constructs an audit handler.
func NewAuditHandler(conn *gorm.DB) *AuditHandler {
	return &AuditHandler{db: conn}
}

// List returns audit records, newest first, with paging and filters.
func (h *AuditHandler) List(c *gin.Context) {
	page := parsePageParam(c.Query("page"), 1)
	pageSize := parsePageParam(c.Query("page_size"), defaultAuditPageSize)
	if pageSize > maxAuditPageSize {
		pageSize = maxAuditPageSize
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.AuditRecord{})

	if tierName := strings.TrimSpace(c.Query("tier")); tierName != "" {
		q = q.Where("tier = ?", tierName)
	}
	if endpoint := strings.TrimSpace(c.Query("endpoint")); endpoint != "" {
		expr, arg := db.ContainsFold(h.db, "endpoint", endpoint)
		q = q.Where(expr, arg)
	}
	if source := strings.TrimSpace(c.Query("source")); source != "" {
		q = q.Where("source = ?", source)
	}
	if outcome := strings.TrimSpace(c.Query("outcome")); outcome != "" {
		q = q.Where("outcome = ?", outcome)
	}
	switch applied := strings.TrimSpace(c.Query("applied")); applied {
	case "":
	case "true", "1":
		q = q.Where("applied = ?", true)
	case "false", "0":
		q = q.Where("applied = ?", false)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid applied filter"})
		return
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count audit records failed"})
		return
	}

	var rows []models.AuditRecord
	errFind := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list audit records failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":         row.ID,
			"tier":       row.Tier,
			"endpoint":   row.Endpoint,
			"action":     row.Action,
			"old_rps":    row.OldRPS,
			"new_rps":    row.NewRPS,
			"new_burst":  row.NewBurst,
			"confidence": row.Confidence,
			"reason":     row.Reason,
			"applied":    row.Applied,
			"source":     row.Source,
			"entry_id":   row.EntryID,
			"outcome":    row.Outcome,
			"created_at": row.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"records":   out,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// parsePageParam parses a positive paging parameter with a fallback.
func parsePageParam(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	parsed, errParse := strconv.Atoi(raw)
	if errParse != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
