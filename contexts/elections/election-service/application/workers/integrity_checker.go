package workers

import (
	"context"
	"log/slog"

	application "ballot/contexts/elections/election-service/application"
	"ballot/contexts/elections/election-service/domain/entities"
	"ballot/contexts/elections/election-service/ports"
)

// IntegrityChecker verifies that every election has exactly as many votes as
// USED tokens. Mismatches are returned and logged at error level; nothing is
// repaired automatically.
type IntegrityChecker struct {
	Results ports.ResultRepository
	Logger  *slog.Logger
}

func (w IntegrityChecker) RunOnce(ctx context.Context) ([]entities.IntegrityReport, error) {
	logger := application.ResolveLogger(w.Logger)
	reports, err := w.Results.IntegrityReports(ctx)
	if err != nil {
		logger.Error("integrity check failed",
			"event", "election_integrity_check_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return nil, err
	}
	mismatches := make([]entities.IntegrityReport, 0)
	for _, report := range reports {
		if report.Consistent() {
			continue
		}
		mismatches = append(mismatches, report)
		logger.Error("vote count does not match used tokens",
			"event", "election_integrity_mismatch",
			"module", application.ModuleName,
			"layer", "worker",
			"election_id", report.ElectionID,
			"votes", report.Votes,
			"used_tokens", report.UsedTokens,
		)
	}
	logger.Info("integrity check completed",
		"event", "election_integrity_check_completed",
		"module", application.ModuleName,
		"layer", "worker",
		"elections_checked", len(reports),
		"mismatches", len(mismatches),
	)
	return mismatches, nil
}
