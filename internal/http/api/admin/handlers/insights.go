package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/limitwarden/limitwarden/internal/arbiter"
	"github.com/limitwarden/limitwarden/internal/policy"
	"github.com/limitwarden/limitwarden/internal/surge"
	"github.com/limitwarden/limitwarden/internal/window"
)

// InsightsHandler reports live traffic state per active key.
type InsightsHandler struct {
	windows   *window.Collector // Per-key sample windows.
	predictor *surge.Predictor  // Surge probability source.
	store     *policy.Store     // Committed policy snapshots.
	nowFn     func() time.Time  // Clock, injectable for tests.
}

// NewInsightsHandler constructs an insights handler.
func NewInsightsHandler(windows *window.Collector, predictor *surge.Predictor, store *policy.Store, nowFn func() time.Time) *InsightsHandler {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &InsightsHandler{windows: windows, predictor: predictor, store: store, nowFn: nowFn}
}

// List returns window stats, surge state, and policy for every active key.
func (h *InsightsHandler) List(c *gin.Context) {
	now := h.nowFn()
	keys := h.windows.ActiveKeys(now, arbiter.DefaultIdleTTL)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Tier != keys[j].Tier {
			return keys[i].Tier < keys[j].Tier
		}
		return keys[i].Endpoint < keys[j].Endpoint
	})

	out := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		stats := h.windows.Stats(key, now)
		pred := h.predictor.Predict(h.windows.Snapshot(key, now))
		pol := h.store.Snapshot(key)

		utilization := 0.0
		if pol.CurrentLimit > 0 {
			utilization = stats.CurrentRate / pol.CurrentLimit
		}

		out = append(out, gin.H{
			"tier":              key.Tier,
			"endpoint":          key.Endpoint,
			"rps":               pol.CurrentLimit,
			"burst":             pol.BurstCapacity,
			"current_rate":      stats.CurrentRate,
			"avg_rate":          stats.AvgRate,
			"utilization":       utilization,
			"blocked_ratio":     stats.BlockedRatio,
			"samples":           stats.Samples,
			"surge_probability": pred.Probability,
			"surge_class":       pred.Class.String(),
			"trend":             pred.Trend,
		})
	}
	c.JSON(http.StatusOK, gin.H{"keys": out})
}
