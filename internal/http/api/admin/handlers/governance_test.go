package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/limitwarden/limitwarden/internal/governance"
	"github.com/limitwarden/limitwarden/internal/oracle"
	"github.com/limitwarden/limitwarden/internal/policy"
	"github.com/limitwarden/limitwarden/internal/tier"
)

func newGovernanceRouter(t *testing.T) (*gin.Engine, *governance.Queue, *policy.Store, *gorm.DB) {
	t.Helper()
	conn := openHandlerDB(t)
	store := policy.NewStore(tier.NewCatalog(nil), nil)
	queue := governance.NewQueue(conn, store, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewGovernanceHandler(conn, queue)
	r.GET("/governance", h.List)
	r.GET("/governance/:id", h.Get)
	r.POST("/governance/:id/approve", h.Approve)
	r.POST("/governance/:id/reject", h.Reject)
	r.POST("/governance/approve-all", h.ApproveAll)
	return r, queue, store, conn
}

func enqueueEntry(t *testing.T, queue *governance.Queue, key policy.Key, rps float64) string {
	t.Helper()
	entry, errEnqueue := queue.Enqueue(context.Background(), key, oracle.Decision{
		Action:     oracle.ActionUp,
		NewRPS:     rps,
		NewBurst:   int(rps * 3),
		Confidence: 0.9,
		Reasoning:  "test",
	}, 8)
	if errEnqueue != nil {
		t.Fatalf("enqueue: %v", errEnqueue)
	}
	return entry.ID
}

func TestGovernanceApprove_CommitsAndConflictsOnRepeat(t *testing.T) {
	r, queue, store, _ := newGovernanceRouter(t)
	key := policy.Key{Tier: tier.Pro, Endpoint: "/api/search"}
	id := enqueueEntry(t, queue, key, 20)

	w := postJSON(t, r, "/governance/"+id+"/approve", gin.H{})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var resp struct {
		RPS     float64 `json:"rps"`
		Version int64   `json:"version"`
	}
	if errUnmarshal := json.Unmarshal(w.Body.Bytes(), &resp); errUnmarshal != nil {
		t.Fatalf("decode response: %v", errUnmarshal)
	}
	if resp.RPS != 20 || resp.Version != 2 {
		t.Fatalf("unexpected commit: rps=%.2f version=%d", resp.RPS, resp.Version)
	}
	if pol := store.Snapshot(key); pol.CurrentLimit != 20 {
		t.Fatalf("expected committed limit 20, got %.2f", pol.CurrentLimit)
	}

	if w = postJSON(t, r, "/governance/"+id+"/approve", gin.H{}); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on repeated approval, got %d", w.Code)
	}
	if w = postJSON(t, r, "/governance/"+id+"/reject", gin.H{}); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on reject after approve, got %d", w.Code)
	}
}

func TestGovernanceApprove_UnknownEntry(t *testing.T) {
	r, _, _, _ := newGovernanceRouter(t)

	if w := postJSON(t, r, "/governance/no-such-id/approve", gin.H{}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGovernanceList_DefaultsToPending(t *testing.T) {
	r, queue, _, _ := newGovernanceRouter(t)
	key := policy.Key{Tier: tier.Pro, Endpoint: "/api/search"}
	decided := enqueueEntry(t, queue, key, 20)
	pending := enqueueEntry(t, queue, key, 25)

	if _, errApprove := queue.Approve(context.Background(), decided, "operator"); errApprove != nil {
		t.Fatalf("approve: %v", errApprove)
	}

	req := httptest.NewRequest(http.MethodGet, "/governance", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Entries []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"entries"`
	}
	if errUnmarshal := json.Unmarshal(w.Body.Bytes(), &resp); errUnmarshal != nil {
		t.Fatalf("decode response: %v", errUnmarshal)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(resp.Entries))
	}
	if resp.Entries[0].ID != pending || resp.Entries[0].Status != "pending" {
		t.Fatalf("unexpected entry: %+v", resp.Entries[0])
	}

	req = httptest.NewRequest(http.MethodGet, "/governance?status=all", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if errUnmarshal := json.Unmarshal(w.Body.Bytes(), &resp); errUnmarshal != nil {
		t.Fatalf("decode response: %v", errUnmarshal)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("expected 2 entries with status=all, got %d", len(resp.Entries))
	}

	req = httptest.NewRequest(http.MethodGet, "/governance?status=bogus", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status, got %d", w.Code)
	}
}

func TestGovernanceApproveAll(t *testing.T) {
	r, queue, _, _ := newGovernanceRouter(t)
	enqueueEntry(t, queue, policy.Key{Tier: tier.Pro, Endpoint: "/a"}, 20)
	enqueueEntry(t, queue, policy.Key{Tier: tier.Pro, Endpoint: "/b"}, 25)

	w := postJSON(t, r, "/governance/approve-all", gin.H{})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Applied int `json:"applied"`
	}
	if errUnmarshal := json.Unmarshal(w.Body.Bytes(), &resp); errUnmarshal != nil {
		t.Fatalf("decode response: %v", errUnmarshal)
	}
	if resp.Applied != 2 {
		t.Fatalf("expected 2 applied, got %d", resp.Applied)
	}
}
