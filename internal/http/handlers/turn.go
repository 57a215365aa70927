package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/http/response"
	"github.com/yungbote/english-trainer-backend/internal/pkg/ctxutil"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
	"github.com/yungbote/english-trainer-backend/internal/trainer/orchestrator"
)

type TurnSubmitter interface {
	Submit(ctx context.Context, in orchestrator.SubmitInput) (orchestrator.TurnResult, error)
}

type TurnHandler struct {
	log   *logger.Logger
	turns TurnSubmitter
}

func NewTurnHandler(log *logger.Logger, turns TurnSubmitter) *TurnHandler {
	return &TurnHandler{
		log:   log.With("handler", "TurnHandler"),
		turns: turns,
	}
}

type submitTurnRequest struct {
	Input string `json:"input" binding:"required"`
}

type quotaView struct {
	Allowed   bool      `json:"allowed"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

func newQuotaView(d billing.QuotaDecision) quotaView {
	return quotaView{
		Allowed:   d.Allowed,
		Used:      d.Used,
		Limit:     d.Limit,
		Remaining: d.Remaining(),
		ResetAt:   d.ResetAt,
	}
}

type turnView struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	TurnIndex int              `json:"turn_index"`
	Status    string           `json:"status"`
	LatencyMS int64            `json:"latency_ms"`
	Feedback  trainer.Feedback `json:"feedback"`
	Quota     quotaView        `json:"quota"`
}

// POST /api/sessions/:id/turns
// Fallback turns are still 200; the status field tells the client.
func (h *TurnHandler) Submit(c *gin.Context) {
	sessionID, ok := pathID(c)
	if !ok {
		return
	}
	var req submitTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	res, err := h.turns.Submit(ctx, orchestrator.SubmitInput{
		UserID:    ctxutil.UserID(ctx),
		SessionID: sessionID,
		Input:     req.Input,
	})
	if err != nil {
		if ctx.Err() != nil {
			// Client went away; nothing was written.
			c.Abort()
			return
		}
		if response.FromError(c, err) {
			h.log.Error("Submit failed", "session_id", sessionID, "input_len", len(req.Input), "error", err)
		}
		return
	}
	response.RespondOK(c, gin.H{"turn": turnView{
		ID:        res.Turn.ID.String(),
		SessionID: res.Turn.SessionID.String(),
		TurnIndex: res.Turn.TurnIndex,
		Status:    res.Status,
		LatencyMS: res.Turn.LatencyMS,
		Feedback:  res.Feedback,
		Quota:     newQuotaView(res.Quota),
	}})
}
