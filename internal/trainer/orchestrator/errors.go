package orchestrator

import (
	"errors"
	"fmt"

	"github.com/yungbote/english-trainer-backend/internal/domain/billing"
)

var (
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionArchived = errors.New("session archived")
	ErrInvalidInput    = errors.New("invalid input")
)

// QuotaExceededError carries the denying decision. It matches ErrQuotaExceeded
// under errors.Is.
type QuotaExceededError struct {
	Decision billing.QuotaDecision
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s (%d/%d)", e.Decision.Reason, e.Decision.Used, e.Decision.Limit)
}

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

// QuotaDecisionOf extracts the denying decision from err, if any.
func QuotaDecisionOf(err error) (billing.QuotaDecision, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe.Decision, true
	}
	return billing.QuotaDecision{}, false
}
