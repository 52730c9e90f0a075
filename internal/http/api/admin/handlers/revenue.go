package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/limitwarden/limitwarden/internal/revenue"
)

// RevenueHandler exposes the revenue impact ledger.
type RevenueHandler struct {
	ledger *revenue.Ledger // Tier-weighted admission accounting.
}

// NewRevenueHandler constructs a revenue handler.
func NewRevenueHandler(ledger *revenue.Ledger) *RevenueHandler {
	return &RevenueHandler{ledger: ledger}
}

// Summary returns per-tier protected and lost revenue plus grand totals.
func (h *RevenueHandler) Summary(c *gin.Context) {
	snapshot := h.ledger.Snapshot()

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	tiers := make([]gin.H, 0, len(names))
	var totalProtected, totalLost float64
	for _, name := range names {
		totals := snapshot[name]
		totalProtected += totals.Protected
		totalLost += totals.Lost
		tiers = append(tiers, gin.H{
			"tier":      name,
			"protected": totals.Protected,
			"lost":      totals.Lost,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"tiers":           tiers,
		"total_protected": totalProtected,
		"total_lost":      totalLost,
	})
}
