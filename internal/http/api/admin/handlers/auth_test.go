package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/limitwarden/limitwarden/internal/config"
	"github.com/limitwarden/limitwarden/internal/db"
	"github.com/limitwarden/limitwarden/internal/models"
	"github.com/limitwarden/limitwarden/internal/security"
)

func openHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "handlers-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedAdmin(t *testing.T, conn *gorm.DB, username, password string) {
	t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	if errCreate := conn.Create(&models.Admin{Username: username, Password: hash}).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		t.Fatalf("marshal body: %v", errMarshal)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func putJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		t.Fatalf("marshal body: %v", errMarshal)
	}
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newLoginRouter(conn *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAuthHandler(conn, config.JWTConfig{Secret: "test-secret", Expiry: time.Hour})
	r.POST("/login", h.Login)
	return r
}

func TestLogin_IssuesToken(t *testing.T) {
	conn := openHandlerDB(t)
	seedAdmin(t, conn, "alice", "swordfish")
	r := newLoginRouter(conn)

	w := postJSON(t, r, "/login", gin.H{"username": "alice", "password": "swordfish"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expires_in"`
	}
	if errUnmarshal := json.Unmarshal(w.Body.Bytes(), &resp); errUnmarshal != nil {
		t.Fatalf("decode response: %v", errUnmarshal)
	}
	if resp.ExpiresIn != 3600 {
		t.Fatalf("expected expires_in 3600, got %d", resp.ExpiresIn)
	}

	claims, errParse := security.ParseAdminToken("test-secret", resp.Token)
	if errParse != nil {
		t.Fatalf("parse issued token: %v", errParse)
	}
	if claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	conn := openHandlerDB(t)
	seedAdmin(t, conn, "alice", "swordfish")
	r := newLoginRouter(conn)

	if w := postJSON(t, r, "/login", gin.H{"username": "alice", "password": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", w.Code)
	}
	if w := postJSON(t, r, "/login", gin.H{"username": "nobody", "password": "swordfish"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", w.Code)
	}
	if w := postJSON(t, r, "/login", gin.H{"username": "", "password": ""}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty credentials, got %d", w.Code)
	}
}
