package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/english-trainer-backend/internal/domain/aggregates"
	apperrors "github.com/yungbote/english-trainer-backend/internal/pkg/errors"
	"github.com/yungbote/english-trainer-backend/internal/trainer/orchestrator"
)

// Generic messages; the underlying error stays in the server log.
const (
	msgInternal  = "something went wrong, please try again"
	msgRetryable = "the service is busy, please retry shortly"
	msgRejected  = "the request could not be processed"
)

// FromError maps service and pipeline errors onto the error envelope and
// reports whether the caller should log err. Only sentinel messages written
// for clients are echoed; everything else gets a fixed message.
func FromError(c *gin.Context, err error) (logIt bool) {
	if d, ok := orchestrator.QuotaDecisionOf(err); ok {
		RespondErrorDetails(c, http.StatusTooManyRequests, "quota_exceeded", "monthly turn limit reached", d)
		return false
	}
	switch {
	case errors.Is(err, orchestrator.ErrQuotaExceeded), domainagg.IsCode(err, domainagg.CodeQuotaExceeded):
		RespondError(c, http.StatusTooManyRequests, "quota_exceeded", errors.New("monthly turn limit reached"))
	case errors.Is(err, orchestrator.ErrSessionNotFound), errors.Is(err, apperrors.ErrNotFound), domainagg.IsCode(err, domainagg.CodeNotFound):
		RespondError(c, http.StatusNotFound, "not_found", errors.New("not found"))
	case errors.Is(err, orchestrator.ErrSessionArchived):
		RespondError(c, http.StatusConflict, "session_archived", orchestrator.ErrSessionArchived)
	case errors.Is(err, orchestrator.ErrInvalidInput), errors.Is(err, apperrors.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case domainagg.IsCode(err, domainagg.CodeValidation):
		RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New(msgRejected))
		return true
	case errors.Is(err, apperrors.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
	case errors.Is(err, apperrors.ErrForbidden):
		RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
	case domainagg.IsCode(err, domainagg.CodeRetryable), domainagg.IsCode(err, domainagg.CodeConflict):
		RespondError(c, http.StatusServiceUnavailable, "retryable", errors.New(msgRetryable))
		return true
	default:
		RespondError(c, http.StatusInternalServerError, "internal", errors.New(msgInternal))
		return true
	}
	return false
}
