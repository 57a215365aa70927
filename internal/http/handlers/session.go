package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/http/response"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
	"github.com/yungbote/english-trainer-backend/internal/services"
)

type SessionHandler struct {
	log      *logger.Logger
	sessions services.SessionService
}

func NewSessionHandler(log *logger.Logger, sessions services.SessionService) *SessionHandler {
	return &SessionHandler{
		log:      log.With("handler", "SessionHandler"),
		sessions: sessions,
	}
}

type createSessionRequest struct {
	Scenario string `json:"scenario" binding:"required"`
	Track    string `json:"track"`
	Level    string `json:"level"`
	Title    string `json:"title"`
}

// POST /api/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	row, err := h.sessions.Create(c.Request.Context(), services.CreateSessionInput{
		Scenario: req.Scenario,
		Track:    req.Track,
		Level:    req.Level,
		Title:    req.Title,
	})
	if err != nil {
		h.fail(c, "Create", err)
		return
	}
	response.RespondCreated(c, gin.H{"session": row})
}

// GET /api/sessions?include_archived=true
func (h *SessionHandler) List(c *gin.Context) {
	includeArchived, _ := strconv.ParseBool(c.Query("include_archived"))
	rows, err := h.sessions.List(c.Request.Context(), includeArchived)
	if err != nil {
		h.fail(c, "List", err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": rows})
}

// GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	row, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Get", err)
		return
	}
	response.RespondOK(c, gin.H{"session": row})
}

// POST /api/sessions/:id/archive
func (h *SessionHandler) Archive(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.sessions.Archive(c.Request.Context(), id); err != nil {
		h.fail(c, "Archive", err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// GET /api/sessions/:id/turns?limit=50
func (h *SessionHandler) ListTurns(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.sessions.ListTurns(c.Request.Context(), id, limit)
	if err != nil {
		h.fail(c, "ListTurns", err)
		return
	}
	response.RespondOK(c, gin.H{"turns": rows})
}

func (h *SessionHandler) fail(c *gin.Context, op string, err error) {
	if response.FromError(c, err) {
		h.log.Error(op+" failed", "error", err)
	}
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}
