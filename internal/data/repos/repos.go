package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/english-trainer-backend/internal/data/repos/billing"
	"github.com/yungbote/english-trainer-backend/internal/data/repos/kb"
	"github.com/yungbote/english-trainer-backend/internal/data/repos/reports"
	"github.com/yungbote/english-trainer-backend/internal/data/repos/trainer"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

type SessionRepo = trainer.SessionRepo
type TurnRepo = trainer.TurnRepo
type ErrorEventRepo = trainer.ErrorEventRepo

type PublicCardRepo = kb.PublicCardRepo
type UserCardRepo = kb.UserCardRepo

type ProfileRepo = billing.ProfileRepo
type UsageLedgerRepo = billing.UsageLedgerRepo

type WeeklyReportRepo = reports.WeeklyReportRepo

// Set is the full table-repo set wired by the app.
type Set struct {
	Sessions    SessionRepo
	Turns       TurnRepo
	ErrorEvents ErrorEventRepo
	PublicCards PublicCardRepo
	UserCards   UserCardRepo
	Profiles    ProfileRepo
	Usage       UsageLedgerRepo
	Reports     WeeklyReportRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Sessions:    trainer.NewSessionRepo(db, log),
		Turns:       trainer.NewTurnRepo(db, log),
		ErrorEvents: trainer.NewErrorEventRepo(db, log),
		PublicCards: kb.NewPublicCardRepo(db, log),
		UserCards:   kb.NewUserCardRepo(db, log),
		Profiles:    billing.NewProfileRepo(db, log),
		Usage:       billing.NewUsageLedgerRepo(db, log),
		Reports:     reports.NewWeeklyReportRepo(db, log),
	}
}
