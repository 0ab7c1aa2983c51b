package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sol-I/stark-ai/internal/dispatch"
	"github.com/Sol-I/stark-ai/internal/domain"
	"github.com/Sol-I/stark-ai/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestAPI wires a dispatcher over the given fake provider handler and
// returns the gin router plus the session store.
func newTestAPI(t *testing.T, providerHandler http.HandlerFunc, opts ...ChatHandlerOption) (*gin.Engine, *SessionStore) {
	t.Helper()

	srv := httptest.NewServer(providerHandler)
	t.Cleanup(srv.Close)

	health := domain.NewHealthTracker(domain.DefaultFailureThreshold, time.Minute)
	registry := domain.NewRegistry(health)
	registry.Register(domain.ProviderConfig{
		Name:           "fake",
		EndpointBase:   srv.URL,
		URLTemplate:    "chat/completions",
		BodyTemplate:   `{"model":"{model_name}","messages":[{"role":"user","content":"{prompt}"}]}`,
		ResponseParser: domain.ParserOpenAI,
		Model:          "test-model",
		Priority:       1,
		Enabled:        true,
	})

	d := dispatch.NewDispatcher(registry, health, dispatch.WithTimeout(2*time.Second))
	sessions := NewSessionStore()
	h := NewChatHandler(d, sessions, registry, health, opts...)

	r := gin.New()
	r.POST("/api/chat", h.HandleChat)
	r.POST("/api/clear", h.HandleClear)
	r.GET("/api/logs", h.HandleLogs)
	r.GET("/api/metrics", h.HandleMetrics)
	r.GET("/health", h.HandleHealth)
	return r, sessions
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat_Success(t *testing.T) {
	r, sessions := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"Hello!"}}]}`)
	})

	rec := doJSON(t, r, "POST", "/api/chat", `{"user_id":"u1","message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Response string `json:"response"`
		Provider string `json:"provider"`
		Attempts int    `json:"attempts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Response != "Hello!" || resp.Provider != "fake" || resp.Attempts != 1 {
		t.Errorf("response = %+v", resp)
	}

	// The exchange lands in the session.
	if got := sessions.History("u1"); len(got) != 2 {
		t.Errorf("session history length = %d, want 2", len(got))
	}
}

func TestHandleChat_SendsHistory(t *testing.T) {
	var mu sync.Mutex
	var lastBody string
	r, _ := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		mu.Lock()
		lastBody = string(b)
		mu.Unlock()
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	})

	doJSON(t, r, "POST", "/api/chat", `{"user_id":"u1","message":"my name is Hana"}`)
	doJSON(t, r, "POST", "/api/chat", `{"user_id":"u1","message":"what is my name?"}`)

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(lastBody, "my name is Hana") {
		t.Errorf("second request body missing prior history: %s", lastBody)
	}
}

func TestHandleChat_BadRequest(t *testing.T) {
	r, _ := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {})

	rec := doJSON(t, r, "POST", "/api/chat", `{"user_id":"u1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleChat_AllProvidersDown(t *testing.T) {
	r, _ := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	rec := doJSON(t, r, "POST", "/api/chat", `{"user_id":"u1","message":"hi"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503; body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "providers_exhausted") {
		t.Errorf("body missing error type: %s", rec.Body.String())
	}
}

func TestHandleClear(t *testing.T) {
	r, sessions := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	})
	sessions.Append("u1", "q", "a")

	rec := doJSON(t, r, "POST", "/api/clear", `{"user_id":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"cleared":true`) {
		t.Errorf("body = %s, want cleared true", rec.Body.String())
	}
	if sessions.History("u1") != nil {
		t.Error("session survived clear")
	}
}

func TestHandleChat_WritesActivityTrail(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "trail.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	r, _ := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}, WithStore(store))

	if rec := doJSON(t, r, "POST", "/api/chat", `{"user_id":"u1","message":"hi"}`); rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}
	if rec := doJSON(t, r, "POST", "/api/clear", `{"user_id":"u1"}`); rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}

	records, err := store.RecentActivity(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("activity records = %d, want 2 (chat + clear)", len(records))
	}

	// /api/logs serves the same trail.
	rec := doJSON(t, r, "GET", "/api/logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/logs status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "answered by fake") {
		t.Errorf("/api/logs body missing dispatch entry: %s", rec.Body.String())
	}
}

func TestHandleLogs_WithoutStore(t *testing.T) {
	r, _ := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {})

	rec := doJSON(t, r, "GET", "/api/logs", "")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501 when storage is disabled", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	r, _ := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {})

	rec := doJSON(t, r, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Status             string `json:"status"`
		ProvidersAvailable int    `json:"providers_available"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.ProvidersAvailable != 1 {
		t.Errorf("health = %+v", resp)
	}
}

func TestHandleHealth_DegradedWhenAllCooling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))
	defer srv.Close()

	health := domain.NewHealthTracker(1, time.Minute)
	registry := domain.NewRegistry(health)
	registry.Register(domain.ProviderConfig{
		Name:           "only",
		EndpointBase:   srv.URL,
		BodyTemplate:   `{"content":"{prompt}"}`,
		ResponseParser: domain.ParserOpenAI,
		Priority:       1,
		Enabled:        true,
	})
	health.RecordFailure("only")

	d := dispatch.NewDispatcher(registry, health)
	h := NewChatHandler(d, NewSessionStore(), registry, health)

	r := gin.New()
	r.GET("/health", h.HandleHealth)

	rec := doJSON(t, r, "GET", "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when every provider is cooling", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Errorf("body = %s, want degraded status", rec.Body.String())
	}
}
