package workers

import (
	"context"
	"log/slog"

	application "ballot/contexts/elections/election-service/application"
	"ballot/contexts/elections/election-service/ports"
)

// SweepReport summarizes one ElectionCloser cycle.
type SweepReport struct {
	ClosedElections      int
	ExpiredVoterSessions int64
	ExpiredAdminSessions int64
}

// ElectionCloser closes ACTIVE elections whose window has ended and purges
// expired sessions. The close is a conditional bulk update, so racing a
// manual close or another sweeper is harmless.
type ElectionCloser struct {
	Elections ports.ElectionRepository
	Sessions  ports.SessionRepository
	Admins    ports.AdminRepository
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (w ElectionCloser) RunOnce(ctx context.Context) (SweepReport, error) {
	logger := application.ResolveLogger(w.Logger)
	now := resolveNow(w.Clock)
	var report SweepReport

	closed, err := w.Elections.CloseExpiredElections(ctx, now)
	if err != nil {
		logger.Error("close sweep failed",
			"event", "election_close_sweep_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return report, err
	}
	report.ClosedElections = len(closed)
	for _, election := range closed {
		logger.Info("election closed by sweep",
			"event", "election_closed_by_sweep",
			"module", application.ModuleName,
			"layer", "worker",
			"election_id", election.ElectionID,
			"end_at", election.EndAt,
		)
		if w.Outbox == nil || w.IDGen == nil {
			continue
		}
		eventID, err := w.IDGen.NewID(ctx)
		if err != nil {
			return report, err
		}
		envelope, err := newSweepEnvelope(eventID, election, now)
		if err != nil {
			return report, err
		}
		if err := w.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return report, err
		}
	}

	if w.Sessions != nil {
		if report.ExpiredVoterSessions, err = w.Sessions.DeleteExpiredSessions(ctx, now); err != nil {
			return report, err
		}
	}
	if w.Admins != nil {
		if report.ExpiredAdminSessions, err = w.Admins.DeleteExpiredAdminSessions(ctx, now); err != nil {
			return report, err
		}
	}

	if report.ClosedElections > 0 || report.ExpiredVoterSessions > 0 || report.ExpiredAdminSessions > 0 {
		logger.Info("close sweep completed",
			"event", "election_close_sweep_completed",
			"module", application.ModuleName,
			"layer", "worker",
			"closed_elections", report.ClosedElections,
			"expired_voter_sessions", report.ExpiredVoterSessions,
			"expired_admin_sessions", report.ExpiredAdminSessions,
		)
	} else {
		logger.Debug("close sweep found nothing to do",
			"event", "election_close_sweep_noop",
			"module", application.ModuleName,
			"layer", "worker",
		)
	}
	return report, nil
}
