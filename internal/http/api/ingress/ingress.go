// Package ingress is the tenant-facing surface: every request is resolved to
// a tier and endpoint, checked against the admission gate, and either proxied
// to the backend or answered with 429.
package ingress

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/limitwarden/limitwarden/internal/gate"
	"github.com/limitwarden/limitwarden/internal/policy"
)

// apiKeyHeader carries the tenant credential.
const apiKeyHeader = "X-API-Key"

// Handler admits requests and forwards the admitted ones upstream.
type Handler struct {
	gate    *gate.Gate
	keys    map[string]string
	proxy   *httputil.ReverseProxy
	backend string
}

// New constructs an ingress handler. keys maps API keys to tier names;
// backendURL is the upstream base, empty to answer admitted requests locally.
func New(g *gate.Gate, keys map[string]string, backendURL string) *Handler {
	h := &Handler{gate: g, keys: keys, backend: strings.TrimSpace(backendURL)}
	if h.backend != "" {
		if target, errParse := url.Parse(h.backend); errParse == nil {
			h.proxy = httputil.NewSingleHostReverseProxy(target)
			h.proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
				log.WithError(err).Warn("ingress: backend proxy failed")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"error":"backend unavailable"}`))
			}
		} else {
			log.WithError(errParse).Warn("ingress: invalid backend url, serving locally")
			h.backend = ""
		}
	}
	return h
}

// RegisterIngressRoutes mounts the catch-all admission route on the engine.
func RegisterIngressRoutes(r *gin.Engine, h *Handler) {
	if r == nil || h == nil {
		return
	}
	r.NoRoute(h.Handle)
}

// Handle resolves the tenant, runs the admission check, and dispatches.
func (h *Handler) Handle(c *gin.Context) {
	tierName, ok := h.resolveTier(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}

	key := policy.Key{Tier: tierName, Endpoint: c.Request.URL.Path}
	result := h.gate.Check(c.Request.Context(), key)

	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%.0f", result.Remaining))
	if !result.Allowed {
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return
	}

	if h.proxy != nil {
		h.proxy.ServeHTTP(c.Writer, c.Request)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "tier": tierName, "endpoint": key.Endpoint})
}

// resolveTier maps the API key header onto a tier name.
func (h *Handler) resolveTier(c *gin.Context) (string, bool) {
	apiKey := strings.TrimSpace(c.GetHeader(apiKeyHeader))
	if apiKey == "" {
		return "", false
	}
	tierName, ok := h.keys[apiKey]
	if !ok {
		return "", false
	}
	return tierName, true
}
