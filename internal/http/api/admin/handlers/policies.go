package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/limitwarden/limitwarden/internal/gate"
	"github.com/limitwarden/limitwarden/internal/policy"
)

// PolicyHandler exposes the committed policy table.
type PolicyHandler struct {
	store *policy.Store // Live policy snapshots.
	gate  *gate.Gate    // Gate for bucket resets.
}

// NewPolicyHandler constructs a policy handler.
func NewPolicyHandler(store *policy.Store, g *gate.Gate) *PolicyHandler {
	return &PolicyHandler{store: store, gate: g}
}

// List returns every tracked key and its committed policy.
func (h *PolicyHandler) List(c *gin.Context) {
	out := make([]gin.H, 0, 16)
	h.store.Range(func(key policy.Key, pol policy.Policy) bool {
		out = append(out, gin.H{
			"tier":       key.Tier,
			"endpoint":   key.Endpoint,
			"rps":        pol.CurrentLimit,
			"burst":      pol.BurstCapacity,
			"baseline":   pol.TierBaseline,
			"cap":        pol.TierCap,
			"version":    pol.Version,
			"updated_at": pol.UpdatedAt,
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i]["tier"].(string) != out[j]["tier"].(string) {
			return out[i]["tier"].(string) < out[j]["tier"].(string)
		}
		return out[i]["endpoint"].(string) < out[j]["endpoint"].(string)
	})
	c.JSON(http.StatusOK, gin.H{"policies": out})
}

// resetPolicyRequest captures the payload for a single-key reset.
type resetPolicyRequest struct {
	Tier     string `json:"tier"`     // Tenant tier.
	Endpoint string `json:"endpoint"` // Endpoint identifier.
}

// Reset restores one key to its tier baseline and clears its bucket.
func (h *PolicyHandler) Reset(c *gin.Context) {
	var body resetPolicyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	tierName := strings.TrimSpace(body.Tier)
	endpoint := strings.TrimSpace(body.Endpoint)
	if tierName == "" || endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tier and endpoint are required"})
		return
	}

	key := policy.Key{Tier: tierName, Endpoint: endpoint}
	pol := h.store.Reset(key)
	if h.gate != nil {
		h.gate.Forget(key)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "rps": pol.CurrentLimit, "burst": pol.BurstCapacity, "version": pol.Version})
}

// ResetAll restores every tracked key to its tier baseline.
func (h *PolicyHandler) ResetAll(c *gin.Context) {
	h.store.ResetAll()
	if h.gate != nil {
		h.store.Range(func(key policy.Key, _ policy.Policy) bool {
			h.gate.Forget(key)
			return true
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
