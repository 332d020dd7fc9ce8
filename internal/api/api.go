// Package api serves the interview over HTTP for browser clients.
package api

import (
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rehearse/internal/gateway"
	"rehearse/internal/helper"
	"rehearse/internal/history"
	"rehearse/internal/interview"
	"rehearse/internal/memory"
	"rehearse/internal/session"
)

type Interviewer interface {
	session.Interviewer
	session.Evaluator
}

type Voice interface {
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

type Advisor interface {
	Ask(ctx context.Context, question string, c *helper.Context) (string, error)
}

type Handler struct {
	model    Interviewer
	memories session.Memories
	voice    Voice
	history  history.Store
	advisor  Advisor
	now      func() time.Time
}

func NewHandler(model Interviewer, memories session.Memories, voice Voice, store history.Store, advisor Advisor) *Handler {
	return &Handler{
		model:    model,
		memories: memories,
		voice:    voice,
		history:  store,
		advisor:  advisor,
		now:      time.Now,
	}
}

// Router registers every route on a fresh gin engine.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")
	api.POST("/chat", h.Chat)
	api.POST("/summary", h.Summary)
	api.POST("/speak", h.Speak)
	api.GET("/history", h.ListHistory)
	api.POST("/history", h.SaveHistory)
	api.POST("/helper", h.Helper)
	return r
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start))
	}
}

type chatRequest struct {
	Messages       []interview.Message `json:"messages"`
	Resume         string              `json:"resume"`
	JobDescription string              `json:"jobDescription"`
	Role           string              `json:"role"`
	UserID         string              `json:"userId"`
}

// Chat runs one stateless turn: the client owns the message log.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	ctx := c.Request.Context()

	mems, err := h.memories.Context(ctx, req.UserID, lastUserText(req.Messages))
	if err != nil {
		log.Error("Failed to read memories", "user", req.UserID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate response"})
		return
	}

	env, err := h.model.Turn(ctx, gateway.TurnRequest{
		Messages:       req.Messages,
		Resume:         req.Resume,
		JobDescription: req.JobDescription,
		Role:           req.Role,
		UserID:         req.UserID,
		Memories:       memory.FormatBlock(mems),
	})
	if err != nil {
		log.Error("Chat turn failed", "user", req.UserID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate response"})
		return
	}

	if env.Memory != nil {
		if _, err := h.memories.Remember(ctx, req.UserID, env.Memory); err != nil {
			log.Warn("Failed to persist memory", "user", req.UserID, "err", err)
		}
	}

	c.JSON(http.StatusOK, env)
}

func lastUserText(msgs []interview.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == interview.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

type summaryRequest struct {
	Messages []interview.Message `json:"messages"`
	Role     string              `json:"role"`
}

func (h *Handler) Summary(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ev, err := h.model.Summarize(c.Request.Context(), req.Messages, req.Role)
	if err != nil {
		log.Error("Summary failed", "role", req.Role, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate summary"})
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) Speak(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text is required"})
		return
	}

	audio, provider, err := h.voice.Synthesize(c.Request.Context(), req.Text)
	if err != nil {
		log.Error("Speech failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate speech"})
		return
	}

	c.Header("X-Voice-Provider", provider)
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

func (h *Handler) ListHistory(c *gin.Context) {
	owner := c.Query("userId")
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "UserId is required"})
		return
	}

	sessions, err := h.history.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		log.Error("Failed to fetch history", "user", owner, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	if sessions == nil {
		sessions = []history.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) SaveHistory(c *gin.Context) {
	var s history.Session
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.OwnerID == "" {
		s.OwnerID = session.GuestOwner
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = h.now()
	}

	if err := h.history.Create(c.Request.Context(), &s); err != nil {
		log.Error("Failed to save session", "user", s.OwnerID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session"})
		return
	}
	c.JSON(http.StatusOK, s)
}

type helperRequest struct {
	Message string          `json:"message"`
	Context *helper.Context `json:"context"`
}

func (h *Handler) Helper(c *gin.Context) {
	if h.advisor == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Helper not configured"})
		return
	}

	var req helperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	answer, err := h.advisor.Ask(c.Request.Context(), req.Message, req.Context)
	switch {
	case errors.Is(err, helper.ErrEmptyQuestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	case err != nil:
		log.Error("Helper failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate response"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": answer})
}
