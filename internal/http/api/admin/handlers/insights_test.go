package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/limitwarden/limitwarden/internal/policy"
	"github.com/limitwarden/limitwarden/internal/surge"
	"github.com/limitwarden/limitwarden/internal/tier"
	"github.com/limitwarden/limitwarden/internal/window"
)

func TestInsightsList_ReportsActiveKeys(t *testing.T) {
	now := time.Unix(6000, 0)
	store := policy.NewStore(tier.NewCatalog(nil), nil)
	windows := window.NewCollector(window.DefaultCapacity)
	predictor := surge.NewPredictor(window.DefaultCapacity)

	key := policy.Key{Tier: tier.Pro, Endpoint: "/api/search"}
	for i := 0; i < 4; i++ {
		windows.Record(key, now, true)
	}
	windows.Record(key, now, false)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/insights", NewInsightsHandler(windows, predictor, store, func() time.Time { return now }).List)

	req := httptest.NewRequest(http.MethodGet, "/insights", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Keys []struct {
			Tier         string  `json:"tier"`
			Endpoint     string  `json:"endpoint"`
			RPS          float64 `json:"rps"`
			CurrentRate  float64 `json:"current_rate"`
			Utilization  float64 `json:"utilization"`
			BlockedRatio float64 `json:"blocked_ratio"`
			SurgeClass   string  `json:"surge_class"`
		} `json:"keys"`
	}
	if errUnmarshal := json.Unmarshal(w.Body.Bytes(), &resp); errUnmarshal != nil {
		t.Fatalf("decode response: %v", errUnmarshal)
	}
	if len(resp.Keys) != 1 {
		t.Fatalf("expected 1 active key, got %d", len(resp.Keys))
	}
	got := resp.Keys[0]
	if got.Tier != tier.Pro || got.Endpoint != "/api/search" {
		t.Fatalf("unexpected key: %+v", got)
	}
	if got.RPS != 8 || got.CurrentRate != 4 {
		t.Fatalf("expected rps=8 current=4, got %+v", got)
	}
	if got.Utilization != 0.5 {
		t.Fatalf("expected utilization 0.5, got %.2f", got.Utilization)
	}
	if got.BlockedRatio != 0.2 {
		t.Fatalf("expected blocked ratio 0.2, got %.2f", got.BlockedRatio)
	}
	// A single-second window carries no surge prediction yet.
	if got.SurgeClass != "normal" {
		t.Fatalf("expected normal class, got %s", got.SurgeClass)
	}
}
