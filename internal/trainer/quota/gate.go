// Package quota decides whether a user may submit another turn. Consumption is
// always derived from the usage ledger for the current calendar month.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/data/repos"
	"github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/observability"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

type Gate struct {
	log      *logger.Logger
	profiles repos.ProfileRepo
	usage    repos.UsageLedgerRepo
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewGate(log *logger.Logger, profiles repos.ProfileRepo, usage repos.UsageLedgerRepo, metrics *observability.Metrics) *Gate {
	return &Gate{
		log:      log.With("service", "QuotaGate"),
		profiles: profiles,
		usage:    usage,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Decide applies the plan rules to the units already used this period.
func Decide(p *billing.Profile, used int, now time.Time) billing.QuotaDecision {
	_, resetAt := billing.PeriodBounds(now)
	d := billing.QuotaDecision{
		Allowed: true,
		ResetAt: resetAt,
		Used:    used,
		Limit:   p.MonthlyTurnLimit,
	}
	switch {
	case p.PlanStatus != billing.PlanStatusActive:
		d.Allowed = false
		d.Reason = billing.DenyPlanInactive
	case used >= p.MonthlyTurnLimit:
		d.Allowed = false
		d.Reason = billing.DenyMonthlyLimitReached
	}
	return d
}

// EnsureCanSubmit is a pure read. Users without a profile row are evaluated
// against the default free plan.
func (g *Gate) EnsureCanSubmit(ctx context.Context, userID uuid.UUID) (billing.QuotaDecision, error) {
	d, err := g.CheckInTx(dbctx.Context{Ctx: ctx}, userID, g.now())
	if err != nil {
		return billing.QuotaDecision{}, err
	}
	if !d.Allowed {
		g.metrics.IncQuotaDenied(d.Reason)
		g.log.Info("turn submission denied", "user_id", userID, "reason", d.Reason, "used", d.Used, "limit", d.Limit)
	}
	return d, nil
}

// CheckInTx evaluates quota against the rows visible to dbc. Callers that
// commit a ledger entry lock the profile row first.
func (g *Gate) CheckInTx(dbc dbctx.Context, userID uuid.UUID, now time.Time) (billing.QuotaDecision, error) {
	if userID == uuid.Nil {
		return billing.QuotaDecision{}, fmt.Errorf("missing user_id")
	}
	if now.IsZero() {
		now = g.now()
	}
	p, err := g.profiles.GetByUserID(dbc, userID)
	if err != nil {
		return billing.QuotaDecision{}, fmt.Errorf("load billing profile: %w", err)
	}
	if p == nil {
		p = billing.DefaultProfile(userID, now)
	}
	from, to := billing.PeriodBounds(now)
	used, err := g.usage.SumUnits(dbc, userID, billing.FeatureTurnSubmit, from, to)
	if err != nil {
		return billing.QuotaDecision{}, fmt.Errorf("sum usage: %w", err)
	}
	return Decide(p, used, now), nil
}

// Snapshot reports the current period without logging or counting denials.
func (g *Gate) Snapshot(ctx context.Context, userID uuid.UUID) (billing.QuotaDecision, error) {
	return g.CheckInTx(dbctx.Context{Ctx: ctx}, userID, g.now())
}

// RecordUsage appends a non-turn ledger entry. These features never count
// toward the turn quota.
func (g *Gate) RecordUsage(ctx context.Context, userID uuid.UUID, feature string, sessionID *uuid.UUID) error {
	if feature == billing.FeatureTurnSubmit {
		return fmt.Errorf("turn usage is recorded by the turn commit")
	}
	return g.usage.Append(dbctx.Context{Ctx: ctx}, &billing.UsageEntry{
		UserID:           userID,
		Feature:          feature,
		Units:            1,
		RelatedSessionID: sessionID,
		CreatedAt:        g.now(),
	})
}
