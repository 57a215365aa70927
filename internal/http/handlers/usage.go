package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/http/response"
	"github.com/yungbote/english-trainer-backend/internal/pkg/ctxutil"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

type QuotaSnapshotter interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (billing.QuotaDecision, error)
}

type UsageHandler struct {
	log   *logger.Logger
	quota QuotaSnapshotter
}

func NewUsageHandler(log *logger.Logger, quota QuotaSnapshotter) *UsageHandler {
	return &UsageHandler{log: log.With("handler", "UsageHandler"), quota: quota}
}

// GET /api/usage
func (h *UsageHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	d, err := h.quota.Snapshot(ctx, ctxutil.UserID(ctx))
	if err != nil {
		if response.FromError(c, err) {
			h.log.Error("usage snapshot failed", "error", err)
		}
		return
	}
	response.RespondOK(c, gin.H{"usage": newQuotaView(d), "reason": d.Reason})
}
