package postgresadapter

import (
	"context"
	"errors"
	"strings"
	"time"

	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"

	"gorm.io/gorm"
)

func (r *Repository) CreateElection(ctx context.Context, election entities.Election) error {
	row := electionModelFromEntity(election)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateSlug
		}
		return r.logError("election_repo_create_election_failed", err, "election_id", row.ID)
	}
	return nil
}

// UpdateElection writes metadata and schedule. The write is conditional on
// the status the caller read, so a concurrent transition turns it into
// ErrConflict instead of editing a frozen schedule.
func (r *Repository) UpdateElection(ctx context.Context, election entities.Election) error {
	row := electionModelFromEntity(election)
	result := r.db.WithContext(ctx).
		Model(&electionModel{}).
		Where("id = ? AND status = ?", row.ID, row.Status).
		Updates(map[string]any{
			"slug":        row.Slug,
			"name":        row.Name,
			"description": row.Description,
			"start_at":    row.StartAt,
			"end_at":      row.EndAt,
			"updated_at":  row.UpdatedAt,
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return domainerrors.ErrDuplicateSlug
		}
		return r.logError("election_repo_update_election_failed", result.Error, "election_id", row.ID)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetElection(ctx, row.ID); err != nil {
			return err
		}
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) GetElection(ctx context.Context, electionID string) (entities.Election, error) {
	return r.findElection(ctx, r.db, "id = ?", strings.TrimSpace(electionID))
}

func (r *Repository) GetElectionBySlug(ctx context.Context, slug string) (entities.Election, error) {
	return r.findElection(ctx, r.db, "slug = ?", strings.TrimSpace(slug))
}

func (r *Repository) GetActiveElection(ctx context.Context) (entities.Election, bool, error) {
	election, err := r.findElection(ctx, r.db, "status = ?", string(entities.ElectionStatusActive))
	if errors.Is(err, domainerrors.ErrElectionNotFound) {
		return entities.Election{}, false, nil
	}
	if err != nil {
		return entities.Election{}, false, err
	}
	return election, true, nil
}

func (r *Repository) GetLatestPublishedElection(ctx context.Context) (entities.Election, bool, error) {
	var row electionModel
	err := r.db.WithContext(ctx).
		Where("is_result_public = ? AND closed_at IS NOT NULL", true).
		Order("closed_at DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, false, nil
		}
		return entities.Election{}, false, r.logError("election_repo_get_latest_published_failed", err)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListElections(ctx context.Context, filter entities.ElectionFilter) ([]entities.Election, error) {
	tx := r.db.WithContext(ctx).Model(&electionModel{})
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	var rows []electionModel
	if err := tx.Order("created_at DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_elections_failed", err, "status", string(filter.Status))
	}
	return toElectionEntities(rows), nil
}

// ActivateElection closes every other ACTIVE election and activates the
// target in one transaction. The partial unique index on ACTIVE status makes
// the loser of two concurrent activations fail with ErrActivationConflict.
func (r *Repository) ActivateElection(ctx context.Context, electionID string, now time.Time) (entities.ActivationResult, error) {
	electionID = strings.TrimSpace(electionID)
	now = now.UTC()
	var result entities.ActivationResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active []electionModel
		if err := tx.Where("status = ? AND id <> ?", string(entities.ElectionStatusActive), electionID).
			Find(&active).Error; err != nil {
			return err
		}
		for _, row := range active {
			update := tx.Model(&electionModel{}).
				Where("id = ? AND status = ?", row.ID, string(entities.ElectionStatusActive)).
				Updates(map[string]any{
					"status":     string(entities.ElectionStatusClosed),
					"closed_at":  now,
					"updated_at": now,
				})
			if update.Error != nil {
				return update.Error
			}
			if update.RowsAffected == 0 {
				continue
			}
			closedAt := now
			row.Status = string(entities.ElectionStatusClosed)
			row.ClosedAt = &closedAt
			row.UpdatedAt = now
			result.ClosedElections = append(result.ClosedElections, row.toEntity())
		}

		activate := tx.Model(&electionModel{}).
			Where("id = ? AND status = ?", electionID, string(entities.ElectionStatusDraft)).
			Updates(map[string]any{
				"status":     string(entities.ElectionStatusActive),
				"updated_at": now,
			})
		if activate.Error != nil {
			if isUniqueViolation(activate.Error) {
				return domainerrors.ErrActivationConflict
			}
			return activate.Error
		}
		if activate.RowsAffected == 0 {
			if _, err := r.findElection(ctx, tx, "id = ?", electionID); err != nil {
				return err
			}
			return domainerrors.ErrActivationConflict
		}
		election, err := r.findElection(ctx, tx, "id = ?", electionID)
		if err != nil {
			return err
		}
		result.Election = election
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return entities.ActivationResult{}, domainerrors.ErrActivationConflict
		}
		if domainerrors.KindOf(err) != domainerrors.KindInternal {
			return entities.ActivationResult{}, err
		}
		return entities.ActivationResult{}, r.logError("election_repo_activate_election_failed", err,
			"election_id", electionID,
		)
	}
	return result, nil
}

func (r *Repository) TransitionElection(
	ctx context.Context,
	electionID string,
	from entities.ElectionStatus,
	to entities.ElectionStatus,
	now time.Time,
) (entities.Election, error) {
	electionID = strings.TrimSpace(electionID)
	now = now.UTC()
	updates := map[string]any{
		"status":     string(to),
		"updated_at": now,
	}
	if to == entities.ElectionStatusClosed {
		updates["closed_at"] = now
	}
	result := r.db.WithContext(ctx).
		Model(&electionModel{}).
		Where("id = ? AND status = ?", electionID, string(from)).
		Updates(updates)
	if result.Error != nil {
		return entities.Election{}, r.logError("election_repo_transition_election_failed", result.Error,
			"election_id", electionID,
			"from_status", string(from),
			"to_status", string(to),
		)
	}
	election, err := r.GetElection(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}
	if result.RowsAffected == 0 {
		return entities.Election{}, domainerrors.ErrConflict
	}
	return election, nil
}

func (r *Repository) SetResultVisibility(ctx context.Context, electionID string, public bool, now time.Time) (entities.Election, error) {
	electionID = strings.TrimSpace(electionID)
	result := r.db.WithContext(ctx).
		Model(&electionModel{}).
		Where("id = ? AND status = ?", electionID, string(entities.ElectionStatusClosed)).
		Updates(map[string]any{
			"is_result_public": public,
			"updated_at":       now.UTC(),
		})
	if result.Error != nil {
		return entities.Election{}, r.logError("election_repo_set_result_visibility_failed", result.Error,
			"election_id", electionID,
		)
	}
	election, err := r.GetElection(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}
	if result.RowsAffected == 0 {
		return entities.Election{}, domainerrors.ErrElectionNotClosed
	}
	return election, nil
}

// CloseExpiredElections closes each overdue ACTIVE election with its own
// conditional update, so only rows this call actually closed are returned.
func (r *Repository) CloseExpiredElections(ctx context.Context, now time.Time) ([]entities.Election, error) {
	now = now.UTC()
	var overdue []electionModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND end_at < ?", string(entities.ElectionStatusActive), now).
		Find(&overdue).Error; err != nil {
		return nil, r.logError("election_repo_list_overdue_failed", err)
	}
	closed := make([]entities.Election, 0, len(overdue))
	for _, row := range overdue {
		result := r.db.WithContext(ctx).
			Model(&electionModel{}).
			Where("id = ? AND status = ?", row.ID, string(entities.ElectionStatusActive)).
			Updates(map[string]any{
				"status":     string(entities.ElectionStatusClosed),
				"closed_at":  now,
				"updated_at": now,
			})
		if result.Error != nil {
			return closed, r.logError("election_repo_close_overdue_failed", result.Error, "election_id", row.ID)
		}
		if result.RowsAffected == 0 {
			continue
		}
		closedAt := now
		row.Status = string(entities.ElectionStatusClosed)
		row.ClosedAt = &closedAt
		row.UpdatedAt = now
		closed = append(closed, row.toEntity())
	}
	return closed, nil
}

// Slate writes run in one transaction with holdDraftElection, so they either
// commit while the election is DRAFT or fail with ErrElectionNotDraft.
func (r *Repository) CreateCandidate(ctx context.Context, candidate entities.CandidatePair) error {
	row := candidateModelFromEntity(candidate)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := holdDraftElection(tx, row.ElectionID); err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDuplicateCandidate
			}
			return err
		}
		return nil
	})
	if err != nil {
		if domainerrors.KindOf(err) != domainerrors.KindInternal {
			return err
		}
		return r.logError("election_repo_create_candidate_failed", err,
			"candidate_id", row.ID,
			"election_id", row.ElectionID,
		)
	}
	return nil
}

func (r *Repository) UpdateCandidate(ctx context.Context, candidate entities.CandidatePair) error {
	row := candidateModelFromEntity(candidate)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current candidateModel
		if err := tx.Select("election_id").Where("id = ?", row.ID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrCandidateNotFound
			}
			return err
		}
		if err := holdDraftElection(tx, current.ElectionID); err != nil {
			return err
		}
		result := tx.Model(&candidateModel{}).
			Where("id = ? AND election_id = ?", row.ID, current.ElectionID).
			Updates(map[string]any{
				"number":      row.Number,
				"leader_name": row.LeaderName,
				"deputy_name": row.DeputyName,
				"vision":      row.Vision,
				"mission":     row.Mission,
				"photo_url":   row.PhotoURL,
				"is_active":   row.IsActive,
				"updated_at":  row.UpdatedAt,
			})
		if result.Error != nil {
			if isUniqueViolation(result.Error) {
				return domainerrors.ErrDuplicateCandidate
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrCandidateNotFound
		}
		return nil
	})
	if err != nil {
		if domainerrors.KindOf(err) != domainerrors.KindInternal {
			return err
		}
		return r.logError("election_repo_update_candidate_failed", err, "candidate_id", row.ID)
	}
	return nil
}

// DeleteCandidate relies on the votes foreign key to refuse deleting a pair
// that already received votes.
func (r *Repository) DeleteCandidate(ctx context.Context, electionID string, candidateID string) error {
	electionID = strings.TrimSpace(electionID)
	candidateID = strings.TrimSpace(candidateID)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := holdDraftElection(tx, electionID); err != nil {
			return err
		}
		result := tx.Where("id = ? AND election_id = ?", candidateID, electionID).Delete(&candidateModel{})
		if result.Error != nil {
			if isForeignKeyViolation(result.Error) {
				return domainerrors.ErrCandidateHasVotes
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrCandidateNotFound
		}
		return nil
	})
	if err != nil {
		if domainerrors.KindOf(err) != domainerrors.KindInternal {
			return err
		}
		return r.logError("election_repo_delete_candidate_failed", err, "candidate_id", candidateID)
	}
	return nil
}

func (r *Repository) GetCandidate(ctx context.Context, candidateID string) (entities.CandidatePair, error) {
	var row candidateModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(candidateID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.CandidatePair{}, domainerrors.ErrCandidateNotFound
		}
		return entities.CandidatePair{}, r.logError("election_repo_get_candidate_failed", err,
			"candidate_id", strings.TrimSpace(candidateID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListCandidates(ctx context.Context, electionID string, activeOnly bool) ([]entities.CandidatePair, error) {
	tx := r.db.WithContext(ctx).Where("election_id = ?", strings.TrimSpace(electionID))
	if activeOnly {
		tx = tx.Where("is_active = ?", true)
	}
	var rows []candidateModel
	if err := tx.Order("number ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_candidates_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	items := make([]entities.CandidatePair, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CountVotesForCandidate(ctx context.Context, candidateID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("candidate_pair_id = ?", strings.TrimSpace(candidateID)).
		Count(&count).Error; err != nil {
		return 0, r.logError("election_repo_count_candidate_votes_failed", err,
			"candidate_id", strings.TrimSpace(candidateID),
		)
	}
	return count, nil
}

func (r *Repository) findElection(ctx context.Context, db *gorm.DB, query string, arg any) (entities.Election, error) {
	var row electionModel
	err := db.WithContext(ctx).Where(query, arg).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, domainerrors.ErrElectionNotFound
		}
		return entities.Election{}, r.logError("election_repo_get_election_failed", err, "lookup", query)
	}
	return row.toEntity(), nil
}

// holdDraftElection rewrites the election's status onto itself, guarded by
// status = DRAFT. The update takes the row lock for the rest of tx, and
// ActivateElection writes the same row, so whichever commits second sees the
// other's outcome.
func holdDraftElection(tx *gorm.DB, electionID string) error {
	held := tx.Model(&electionModel{}).
		Where("id = ? AND status = ?", electionID, string(entities.ElectionStatusDraft)).
		UpdateColumn("status", gorm.Expr("status"))
	if held.Error != nil {
		return held.Error
	}
	if held.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := tx.Model(&electionModel{}).Where("id = ?", electionID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domainerrors.ErrElectionNotFound
	}
	return domainerrors.ErrElectionNotDraft
}
