// Package handler provides the HTTP API for the dispatch service.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Sol-I/stark-ai/internal/dispatch"
	"github.com/Sol-I/stark-ai/internal/domain"
	"github.com/Sol-I/stark-ai/internal/storage"
)

// ChatHandler serves the chat API on top of the dispatcher.
type ChatHandler struct {
	dispatcher *dispatch.Dispatcher
	sessions   *SessionStore
	health     *domain.HealthTracker
	registry   *domain.Registry
	store      *storage.Store // nil when persistent logging is disabled
	logger     *slog.Logger
}

// ChatHandlerOption is a functional option for configuring ChatHandler.
type ChatHandlerOption func(*ChatHandler)

// WithStore attaches the persistent request log, enabling /api/logs and
// /api/metrics.
func WithStore(store *storage.Store) ChatHandlerOption {
	return func(h *ChatHandler) { h.store = store }
}

// WithHandlerLogger sets a custom logger.
func WithHandlerLogger(logger *slog.Logger) ChatHandlerOption {
	return func(h *ChatHandler) { h.logger = logger }
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(
	dispatcher *dispatch.Dispatcher,
	sessions *SessionStore,
	registry *domain.Registry,
	health *domain.HealthTracker,
	opts ...ChatHandlerOption,
) *ChatHandler {
	h := &ChatHandler{
		dispatcher: dispatcher,
		sessions:   sessions,
		registry:   registry,
		health:     health,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// chatRequest is the POST /api/chat payload.
type chatRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// HandleChat handles POST /api/chat. It dispatches the message with the
// user's conversation history and appends the exchange on success.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"message": "user_id and message are required", "type": "invalid_request"},
		})
		return
	}

	ctx := dispatch.WithCaller(c.Request.Context(), req.UserID)
	history := h.sessions.History(req.UserID)

	res, err := h.dispatcher.Send(ctx, req.Message, history)
	if err != nil {
		h.logActivity(c.Request.Context(), "error",
			fmt.Sprintf("chat dispatch failed for %s: %v", req.UserID, err))
		h.sendDispatchError(c, err)
		return
	}

	h.sessions.Append(req.UserID, req.Message, res.Answer)
	h.logActivity(ctx, "info",
		fmt.Sprintf("chat for %s answered by %s in %d attempt(s)", req.UserID, res.Provider, res.Attempts))

	// Expose dispatch metadata for the logging middleware.
	c.Set("provider_used", res.Provider)
	c.Set("attempts", res.Attempts)

	c.JSON(http.StatusOK, gin.H{
		"response": res.Answer,
		"provider": res.Provider,
		"attempts": res.Attempts,
	})
}

// HandleClear handles POST /api/clear, dropping the user's conversation.
func (h *ChatHandler) HandleClear(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"message": "user_id is required", "type": "invalid_request"},
		})
		return
	}

	cleared := h.sessions.Clear(req.UserID)
	if cleared {
		h.logActivity(c.Request.Context(), "info", "conversation cleared for "+req.UserID)
	}
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

// HandleLogs handles GET /api/logs, returning recent activity records.
func (h *ChatHandler) HandleLogs(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": gin.H{"message": "persistent logging is disabled", "type": "not_configured"},
		})
		return
	}

	limit := parseLimit(c.Query("limit"))
	records, err := h.store.RecentActivity(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("reading activity log failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"message": "failed to read activity log", "type": "server_error"},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": records})
}

// HandleMetrics handles GET /api/metrics, returning per-provider usage
// aggregates plus recent request records.
func (h *ChatHandler) HandleMetrics(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": gin.H{"message": "persistent logging is disabled", "type": "not_configured"},
		})
		return
	}

	ctx := c.Request.Context()
	stats, err := h.store.Stats(ctx)
	if err != nil {
		h.logger.Error("reading usage stats failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"message": "failed to read usage stats", "type": "server_error"},
		})
		return
	}

	recent, err := h.store.RecentRequests(ctx, parseLimit(c.Query("limit")))
	if err != nil {
		h.logger.Error("reading request log failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"message": "failed to read request log", "type": "server_error"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"usage":           stats,
		"recent_requests": recent,
	})
}

// HandleHealth handles GET /health with provider availability counts.
func (h *ChatHandler) HandleHealth(c *gin.Context) {
	names := h.registry.Names()
	available := 0
	cooling := make([]string, 0)
	for _, name := range names {
		if p, ok := h.registry.Get(name); !ok || !p.Enabled {
			continue
		}
		if h.health.Available(name) {
			available++
		} else {
			cooling = append(cooling, name)
		}
	}

	status := "ok"
	code := http.StatusOK
	if available == 0 {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":              status,
		"providers_total":     len(names),
		"providers_available": available,
		"providers_cooling":   cooling,
		"active_sessions":     h.sessions.ActiveSessions(),
	})
}

// sendDispatchError maps dispatch failures to HTTP responses.
func (h *ChatHandler) sendDispatchError(c *gin.Context, err error) {
	var exhausted *dispatch.ExhaustedError
	switch {
	case errors.Is(err, domain.ErrNoProviders):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": gin.H{"message": "no providers configured", "type": "no_providers"},
		})
	case errors.As(err, &exhausted):
		failed := make([]gin.H, len(exhausted.Attempts))
		for i, a := range exhausted.Attempts {
			failed[i] = gin.H{"provider": a.Provider, "error": a.Err.Error()}
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": gin.H{
				"message":  "all providers are currently unavailable",
				"type":     "providers_exhausted",
				"attempts": failed,
			},
		})
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error": gin.H{"message": "request timed out", "type": "timeout"},
		})
	default:
		h.logger.Error("dispatch failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"message": "internal error", "type": "server_error"},
		})
	}
}

// logActivity appends to the persistent activity trail when storage is on.
// A failed write must not affect the response.
func (h *ChatHandler) logActivity(ctx context.Context, level, message string) {
	if h.store == nil {
		return
	}
	if err := h.store.LogActivity(ctx, level, message); err != nil {
		h.logger.Warn("writing activity log failed", slog.Any("error", err))
	}
}

func parseLimit(raw string) int {
	if raw == "" {
		return 50
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 50
	}
	if n > 500 {
		return 500
	}
	return n
}
