package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/english-trainer-backend/internal/data/repos"
	"github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/domain/reports"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/english-trainer-backend/internal/pkg/errors"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

const (
	topErrorTagLimit = 5
	focusThreshold   = 3.5
)

var scoreDimensions = []string{"clarity", "conciseness", "correctness", "tone", "actionability"}

var dimensionFocus = map[string]string{
	"clarity":       "Focus on making your communication clearer and easier to understand.",
	"conciseness":   "Work on being more concise - remove unnecessary words.",
	"correctness":   "Pay attention to grammar and technical accuracy.",
	"tone":          "Adjust your tone to be more professional and appropriate.",
	"actionability": "Make sure your messages lead to clear next steps.",
}

var errorTagFocus = map[string]string{
	trainer.TagTooVague:              "Add more specific details to your communication.",
	trainer.TagTooLong:               "Practice being more concise.",
	trainer.TagMissingMetric:         "Include quantifiable metrics and data.",
	trainer.TagMissingRole:           "Clarify your role and contributions.",
	trainer.TagMissingImpact:         "Highlight the impact of your work.",
	trainer.TagMissingNextStep:       "Always include clear next steps.",
	trainer.TagWeakTradeoff:          "Explain trade-offs in your technical decisions.",
	trainer.TagToneTooDirect:         "Soften your tone for better collaboration.",
	trainer.TagToneTooSoft:           "Be more assertive in your requests.",
	trainer.TagUnclearRequest:        "Make your requests more explicit.",
	trainer.TagUnclearExpectedActual: "Clearly state expected vs actual behavior.",
}

const defaultFocus = "Keep up the good work! Continue practicing to maintain your skills."

type ReportService interface {
	// Latest returns the caller's most recent report, or ErrNotFound.
	Latest(ctx context.Context) (*reports.WeeklyReport, error)
	GenerateForUser(ctx context.Context, userID uuid.UUID, weekStart time.Time) (*reports.WeeklyReport, error)
	// GenerateAll rolls up every user with turns in the week starting at weekStart.
	GenerateAll(ctx context.Context, weekStart time.Time) (int, error)
}

type reportService struct {
	log      *logger.Logger
	sessions repos.SessionRepo
	turns    repos.TurnRepo
	events   repos.ErrorEventRepo
	reports  repos.WeeklyReportRepo
	usage    UsageRecorder
}

func NewReportService(
	log *logger.Logger,
	sessions repos.SessionRepo,
	turns repos.TurnRepo,
	events repos.ErrorEventRepo,
	reportRepo repos.WeeklyReportRepo,
	usage UsageRecorder,
) ReportService {
	return &reportService{
		log:      log.With("service", "ReportService"),
		sessions: sessions,
		turns:    turns,
		events:   events,
		reports:  reportRepo,
		usage:    usage,
	}
}

// WeekStart returns the UTC Monday 00:00 of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// LastWeekStart is the Monday before the current week.
func LastWeekStart(now time.Time) time.Time {
	return WeekStart(now).AddDate(0, 0, -7)
}

func (s *reportService) Latest(ctx context.Context) (*reports.WeeklyReport, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	row, err := s.reports.GetLatest(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, fmt.Errorf("latest report: %w", err)
	}
	if row == nil {
		return nil, apperrors.ErrNotFound
	}
	return row, nil
}

func (s *reportService) GenerateForUser(ctx context.Context, userID uuid.UUID, weekStart time.Time) (*reports.WeeklyReport, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user id", apperrors.ErrInvalidArgument)
	}
	start := WeekStart(weekStart)
	end := start.AddDate(0, 0, 7)
	dbc := dbctx.Context{Ctx: ctx}

	turns, err := s.turns.ListByUserBetween(dbc, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	events, err := s.events.ListByUserBetween(dbc, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load error events: %w", err)
	}
	byScenario, err := s.turnsByScenario(dbc, turns)
	if err != nil {
		return nil, err
	}

	avg := averageScores(turns)
	top := topErrorTags(events, topErrorTagLimit)
	summary := reports.Summary{
		TotalTurns:       len(turns),
		AverageScores:    avg,
		TopErrorTags:     top,
		TurnsByScenario:  byScenario,
		RecommendedFocus: recommendFocus(avg, top),
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	row := &reports.WeeklyReport{
		UserID:      userID,
		PeriodStart: start,
		PeriodEnd:   end.AddDate(0, 0, -1),
		Summary:     datatypes.JSON(raw),
	}
	if err := s.reports.Upsert(dbc, row); err != nil {
		return nil, fmt.Errorf("upsert report: %w", err)
	}
	if err := s.usage.RecordUsage(ctx, userID, billing.FeatureReportGenerate, nil); err != nil {
		s.log.Warn("record report usage failed", "user_id", userID, "error", err)
	}
	s.log.Info("weekly report generated",
		"user_id", userID,
		"period_start", start.Format(time.DateOnly),
		"total_turns", summary.TotalTurns,
	)
	return row, nil
}

func (s *reportService) GenerateAll(ctx context.Context, weekStart time.Time) (int, error) {
	start := WeekStart(weekStart)
	ids, err := s.reports.ListActiveUserIDs(dbctx.Context{Ctx: ctx}, start, start.AddDate(0, 0, 7))
	if err != nil {
		return 0, fmt.Errorf("list active users: %w", err)
	}
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := s.GenerateForUser(ctx, id, start); err != nil {
			s.log.Error("weekly report failed", "user_id", id, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

func (s *reportService) turnsByScenario(dbc dbctx.Context, turns []*trainer.TrainingTurn) (map[string]int, error) {
	scenarios := map[uuid.UUID]string{}
	out := map[string]int{}
	for _, t := range turns {
		sc, ok := scenarios[t.SessionID]
		if !ok {
			sess, err := s.sessions.GetByID(dbc, t.SessionID)
			if err != nil {
				return nil, fmt.Errorf("load session: %w", err)
			}
			if sess != nil {
				sc = sess.Scenario
			}
			scenarios[t.SessionID] = sc
		}
		if sc != "" {
			out[sc]++
		}
	}
	return out, nil
}

// averageScores only counts success turns; fallback payloads carry placeholder scores.
func averageScores(turns []*trainer.TrainingTurn) map[string]float64 {
	sums := map[string]float64{}
	n := 0
	for _, t := range turns {
		if t.Status != trainer.TurnStatusSuccess {
			continue
		}
		var fb trainer.Feedback
		if err := json.Unmarshal(t.Output, &fb); err != nil {
			continue
		}
		n++
		sums["clarity"] += float64(fb.Scores.Clarity)
		sums["conciseness"] += float64(fb.Scores.Conciseness)
		sums["correctness"] += float64(fb.Scores.Correctness)
		sums["tone"] += float64(fb.Scores.Tone)
		sums["actionability"] += float64(fb.Scores.Actionability)
	}
	out := map[string]float64{}
	if n == 0 {
		return out
	}
	for _, dim := range scoreDimensions {
		out[dim] = math.Round(sums[dim]/float64(n)*100) / 100
	}
	return out
}

func topErrorTags(events []*trainer.ErrorEvent, limit int) []reports.TagCount {
	counts := map[string]int{}
	for _, ev := range events {
		counts[ev.ErrorTag]++
	}
	out := make([]reports.TagCount, 0, len(counts))
	for tag, c := range counts {
		out = append(out, reports.TagCount{Tag: tag, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func recommendFocus(avg map[string]float64, top []reports.TagCount) string {
	if len(avg) > 0 {
		lowest := ""
		for _, dim := range scoreDimensions {
			v, ok := avg[dim]
			if !ok {
				continue
			}
			if lowest == "" || v < avg[lowest] {
				lowest = dim
			}
		}
		if lowest != "" && avg[lowest] < focusThreshold {
			return dimensionFocus[lowest]
		}
	}
	if len(top) > 0 {
		if msg, ok := errorTagFocus[top[0].Tag]; ok {
			return msg
		}
		return "Keep practicing!"
	}
	return defaultFocus
}
