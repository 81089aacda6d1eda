package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medchat/internal/engine"
	"medchat/internal/middleware"
	"medchat/internal/models"
	"medchat/internal/storage"
	"medchat/internal/worker"
)

// ChatEngine is the conversation surface the handlers drive.
type ChatEngine interface {
	Chat(ctx context.Context, req engine.ChatRequest) (models.Message, error)
	History(conversationID string) []models.Message
	Clear(conversationID string)
}

// Dispatcher serializes turns per conversation.
type Dispatcher interface {
	Submit(ctx context.Context, key string, fn func(ctx context.Context)) error
}

// StatsSource reports provider attempt counts.
type StatsSource interface {
	Stats(ctx context.Context) ([]storage.ProviderStat, error)
}

// HealthChecker is an optional dependency reported by GET /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

const busyMessage = "The assistant is busy right now. Please try again in a moment."

// Handler wires HTTP routes to the chat engine.
type Handler struct {
	engine     ChatEngine
	dispatcher Dispatcher
	stats      StatsSource
	checks     map[string]HealthChecker
	logger     zerolog.Logger
}

// NewHandler constructs a Handler. dispatcher and stats may be nil.
func NewHandler(eng ChatEngine, dispatcher Dispatcher, stats StatsSource, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:     eng,
		dispatcher: dispatcher,
		stats:      stats,
		logger:     logger,
	}
}

// AddHealthCheck registers a dependency probed by GET /health.
func (h *Handler) AddHealthCheck(name string, checker HealthChecker) {
	if h.checks == nil {
		h.checks = make(map[string]HealthChecker)
	}
	h.checks[name] = checker
}

// NewRouter returns a gin engine with the shared middleware and every route.
func NewRouter(h *Handler, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(logger), middleware.Recovery(logger))
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.POST("/chat", h.chat)
	router.GET("/conversation/:conversationId", h.getConversation)
	router.DELETE("/conversation/:conversationId", h.clearConversation)
	router.GET("/providers/stats", h.providerStats)
}

// health reports "degraded" when a registered dependency fails its ping.
func (h *Handler) health(c *gin.Context) {
	status := "ok"
	checks := gin.H{}
	for name, checker := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := checker.Ping(ctx)
		cancel()
		if err != nil {
			h.logger.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			status = "degraded"
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "checks": checks})
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	Context        string `json:"context"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = engine.DefaultConversationID
	}
	chatReq := engine.ChatRequest{
		ConversationID: conversationID,
		Message:        req.Message,
		Context:        req.Context,
	}

	var (
		reply   models.Message
		chatErr error
	)
	run := func(ctx context.Context) {
		reply, chatErr = h.engine.Chat(ctx, chatReq)
	}
	if h.dispatcher == nil {
		run(c.Request.Context())
	} else if err := h.dispatcher.Submit(c.Request.Context(), conversationID, run); err != nil {
		h.writeDispatchError(c, conversationID, err)
		return
	}

	switch {
	case chatErr == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "data": reply})
	case errors.Is(chatErr, engine.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": validationMessage(chatErr)})
	case errors.Is(chatErr, engine.ErrInternal) && reply.Content != "":
		// The apology is already stored in the conversation.
		h.logger.Error().Err(chatErr).Str("conversation_id", conversationID).Msg("chat turn answered with apology")
		c.JSON(http.StatusOK, gin.H{"success": true, "data": reply})
	default:
		h.logger.Error().Err(chatErr).Str("conversation_id", conversationID).Msg("chat turn failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": engine.ApologyMessage})
	}
}

func (h *Handler) writeDispatchError(c *gin.Context, conversationID string, err error) {
	switch {
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": busyMessage})
	case errors.Is(err, worker.ErrDispatcherClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": busyMessage})
	default:
		h.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("dispatch chat turn failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": engine.ApologyMessage})
	}
}

// validationMessage strips the sentinel prefix from a validation error.
func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), engine.ErrValidation.Error()+": ")
	if msg == "" {
		return "invalid request"
	}
	return msg
}

// getConversation seeds a greeting the first time an unknown id is read.
func (h *Handler) getConversation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("conversationId"))
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.engine.History(id)})
}

func (h *Handler) clearConversation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("conversationId"))
	h.engine.Clear(id)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) providerStats(c *gin.Context) {
	if h.stats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "attempt journal is not configured"})
		return
	}
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("load provider stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not load provider statistics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}
