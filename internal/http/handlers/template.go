package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"net/http"

	"github.com/yungbote/english-trainer-backend/internal/http/response"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
	"github.com/yungbote/english-trainer-backend/internal/services"
)

type TemplateHandler struct {
	log       *logger.Logger
	templates services.TemplateService
	sessions  services.SessionService
}

func NewTemplateHandler(log *logger.Logger, templates services.TemplateService, sessions services.SessionService) *TemplateHandler {
	return &TemplateHandler{
		log:       log.With("handler", "TemplateHandler"),
		templates: templates,
		sessions:  sessions,
	}
}

type saveTemplateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content" binding:"required"`
	TurnID  string `json:"turn_id"`
}

// POST /api/sessions/:id/templates
// The scenario comes from the session, which must belong to the caller.
func (h *TemplateHandler) SaveFromSession(c *gin.Context) {
	sessionID, ok := pathID(c)
	if !ok {
		return
	}
	var req saveTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var turnID *uuid.UUID
	if req.TurnID != "" {
		id, err := uuid.Parse(req.TurnID)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_turn_id", err)
			return
		}
		turnID = &id
	}
	ctx := c.Request.Context()
	sess, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		h.fail(c, "SaveFromSession", err)
		return
	}
	card, err := h.templates.Save(ctx, services.SaveTemplateInput{
		Scenario:  sess.Scenario,
		Title:     req.Title,
		Content:   req.Content,
		SessionID: &sess.ID,
		TurnID:    turnID,
	})
	if err != nil {
		h.fail(c, "SaveFromSession", err)
		return
	}
	response.RespondCreated(c, gin.H{"template": card})
}

// GET /api/templates?scenario=pr_issue
func (h *TemplateHandler) List(c *gin.Context) {
	rows, err := h.templates.List(c.Request.Context(), c.Query("scenario"))
	if err != nil {
		h.fail(c, "List", err)
		return
	}
	response.RespondOK(c, gin.H{"templates": rows})
}

// GET /api/templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	card, err := h.templates.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Get", err)
		return
	}
	response.RespondOK(c, gin.H{"template": card})
}

// DELETE /api/templates/:id
func (h *TemplateHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.templates.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, "Delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TemplateHandler) fail(c *gin.Context, op string, err error) {
	if response.FromError(c, err) {
		h.log.Error(op+" failed", "error", err)
	}
}
