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

const tokenInsertBatchSize = 500

// likeEscaper makes a token search match its text literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// CreateTokenBatch inserts every token of one generation run or none of them.
// A duplicate code anywhere in the batch surfaces as ErrConflict.
func (r *Repository) CreateTokenBatch(ctx context.Context, electionID string, tokens []entities.Token) (entities.TokenBatch, error) {
	electionID = strings.TrimSpace(electionID)
	batch := entities.TokenBatch{ElectionID: electionID}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := holdDraftElection(tx, electionID); err != nil {
			return err
		}
		var current int
		if err := tx.Model(&tokenModel{}).
			Where("election_id = ?", electionID).
			Select("COALESCE(MAX(generated_batch), 0)").
			Scan(&current).Error; err != nil {
			return err
		}
		batch.Batch = current + 1

		rows := make([]tokenModel, 0, len(tokens))
		for _, token := range tokens {
			token.ElectionID = electionID
			token.Status = entities.TokenStatusUnused
			token.GeneratedBatch = batch.Batch
			rows = append(rows, tokenModelFromEntity(token))
		}
		if err := tx.CreateInBatches(&rows, tokenInsertBatchSize).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrConflict
			}
			return err
		}
		batch.Tokens = toTokenEntities(rows)
		return nil
	})
	if err != nil {
		if domainerrors.KindOf(err) != domainerrors.KindInternal {
			return entities.TokenBatch{}, err
		}
		return entities.TokenBatch{}, r.logError("election_repo_create_token_batch_failed", err,
			"election_id", electionID,
			"count", len(tokens),
		)
	}
	return batch, nil
}

func (r *Repository) ListTokenCodes(ctx context.Context, electionID string) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&tokenModel{}).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Pluck("code", &codes).Error; err != nil {
		return nil, r.logError("election_repo_list_token_codes_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return codes, nil
}

func (r *Repository) GetToken(ctx context.Context, tokenID string) (entities.Token, error) {
	var row tokenModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(tokenID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Token{}, domainerrors.ErrTokenNotFound
		}
		return entities.Token{}, r.logError("election_repo_get_token_failed", err,
			"token_id", strings.TrimSpace(tokenID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) FindTokensByCode(ctx context.Context, code string) ([]entities.Token, error) {
	var rows []tokenModel
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_find_tokens_by_code_failed", err)
	}
	return toTokenEntities(rows), nil
}

func (r *Repository) ListTokens(ctx context.Context, filter entities.TokenFilter) (entities.TokenPage, error) {
	tx := r.db.WithContext(ctx).Model(&tokenModel{}).Where("election_id = ?", filter.ElectionID)
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if filter.Batch > 0 {
		tx = tx.Where("generated_batch = ?", filter.Batch)
	}
	if filter.Query != "" {
		tx = tx.Where(`UPPER(code) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(strings.ToUpper(filter.Query))+"%")
	}

	page := entities.TokenPage{Page: filter.Page, PageSize: filter.PageSize}
	if err := tx.Session(&gorm.Session{}).Count(&page.Total).Error; err != nil {
		return entities.TokenPage{}, r.logError("election_repo_count_tokens_failed", err,
			"election_id", filter.ElectionID,
		)
	}
	var rows []tokenModel
	if err := tx.Session(&gorm.Session{}).
		Order("generated_batch ASC").
		Order("created_at ASC").
		Order("id ASC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return entities.TokenPage{}, r.logError("election_repo_list_tokens_failed", err,
			"election_id", filter.ElectionID,
		)
	}
	page.Items = toTokenEntities(rows)
	return page, nil
}

func (r *Repository) InvalidateToken(ctx context.Context, tokenID string, redactedCode string, now time.Time) (entities.Token, error) {
	tokenID = strings.TrimSpace(tokenID)
	now = now.UTC()
	var token entities.Token
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner tokenModel
		if err := tx.Select("election_id").Where("id = ?", tokenID).First(&owner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrTokenNotFound
			}
			return err
		}
		if err := holdDraftElection(tx, owner.ElectionID); err != nil {
			return err
		}
		result := tx.Model(&tokenModel{}).
			Where("id = ? AND status = ?", tokenID, string(entities.TokenStatusUnused)).
			Updates(map[string]any{
				"status":         string(entities.TokenStatusInvalidated),
				"code":           redactedCode,
				"invalidated_at": now,
				"updated_at":     now,
			})
		if result.Error != nil {
			return result.Error
		}
		var row tokenModel
		if err := tx.Where("id = ?", tokenID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrTokenNotFound
			}
			return err
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrTokenNotInvalidatable
		}
		if err := tx.Where("token_id = ?", tokenID).Delete(&voterSessionModel{}).Error; err != nil {
			return err
		}
		token = row.toEntity()
		return nil
	})
	if err != nil {
		if domainerrors.KindOf(err) != domainerrors.KindInternal {
			return entities.Token{}, err
		}
		return entities.Token{}, r.logError("election_repo_invalidate_token_failed", err, "token_id", tokenID)
	}
	return token, nil
}

// ReplaceSession drops any previous session of the token and inserts the new
// one, provided the token is still UNUSED. The token row is held for the rest
// of the transaction, so a concurrent CastVote either commits first and the
// session is refused, or waits and then deletes the new session itself.
func (r *Repository) ReplaceSession(ctx context.Context, session entities.VoterSession) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := holdUnusedToken(tx, session.TokenID); err != nil {
			return err
		}
		if err := tx.Where("token_id = ?", session.TokenID).Delete(&voterSessionModel{}).Error; err != nil {
			return err
		}
		row := voterSessionModel{
			ID:          session.SessionID,
			TokenID:     session.TokenID,
			ElectionID:  session.ElectionID,
			SessionHash: session.SessionHash,
			ExpiresAt:   session.ExpiresAt.UTC(),
			CreatedAt:   session.CreatedAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		if domainerrors.KindOf(err) != domainerrors.KindInternal {
			return err
		}
		return r.logError("election_repo_replace_session_failed", err,
			"token_id", session.TokenID,
			"session_id", session.SessionID,
		)
	}
	return nil
}

func (r *Repository) GetSessionByHash(ctx context.Context, sessionHash string) (entities.VoterSession, bool, error) {
	var row voterSessionModel
	err := r.db.WithContext(ctx).Where("session_hash = ?", sessionHash).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoterSession{}, false, nil
		}
		return entities.VoterSession{}, false, r.logError("election_repo_get_session_failed", err)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(sessionID)).
		Delete(&voterSessionModel{}).Error; err != nil {
		return r.logError("election_repo_delete_session_failed", err, "session_id", strings.TrimSpace(sessionID))
	}
	return nil
}

func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&voterSessionModel{})
	if result.Error != nil {
		return 0, r.logError("election_repo_delete_expired_sessions_failed", result.Error)
	}
	return result.RowsAffected, nil
}

// CastVote is the exactly-once vote transaction. The conditional update on
// the token row is the only concurrency control: of several transactions
// racing on one token, exactly one sees a row affected.
func (r *Repository) CastVote(ctx context.Context, params entities.CastVoteParams) (entities.Vote, error) {
	castAt := params.CastAt.UTC()
	row := voteModel{
		ID:              params.VoteID,
		ElectionID:      params.ElectionID,
		CandidatePairID: params.CandidateID,
		CreatedAt:       castAt,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consume := tx.Model(&tokenModel{}).
			Where("id = ? AND election_id = ? AND status = ?",
				params.TokenID, params.ElectionID, string(entities.TokenStatusUnused)).
			Updates(map[string]any{
				"status":     string(entities.TokenStatusUsed),
				"code":       params.RedactedCode,
				"used_at":    castAt,
				"updated_at": castAt,
			})
		if consume.Error != nil {
			return consume.Error
		}
		if consume.RowsAffected == 0 {
			return domainerrors.ErrTokenAlreadyUsed
		}
		if err := tx.Create(&row).Error; err != nil {
			if isForeignKeyViolation(err) {
				return domainerrors.ErrInvalidCandidate
			}
			return err
		}
		return tx.Where("id = ? OR token_id = ?", params.SessionID, params.TokenID).
			Delete(&voterSessionModel{}).Error
	})
	if err != nil {
		if domainerrors.KindOf(err) != domainerrors.KindInternal {
			return entities.Vote{}, err
		}
		return entities.Vote{}, r.logError("election_repo_cast_vote_failed", err,
			"election_id", params.ElectionID,
			"token_id", params.TokenID,
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) CountVotesByCandidate(ctx context.Context, electionID string) (map[string]int64, error) {
	var rows []struct {
		CandidatePairID string
		Votes           int64
	}
	if err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Select("candidate_pair_id, COUNT(*) AS votes").
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Group("candidate_pair_id").
		Scan(&rows).Error; err != nil {
		return nil, r.logError("election_repo_count_votes_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.CandidatePairID] = row.Votes
	}
	return counts, nil
}

func (r *Repository) CountTokensByStatus(ctx context.Context, electionID string) (entities.TokenStatusCounts, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&tokenModel{}).
		Select("status, COUNT(*) AS total").
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Group("status").
		Scan(&rows).Error; err != nil {
		return entities.TokenStatusCounts{}, r.logError("election_repo_count_tokens_by_status_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	var counts entities.TokenStatusCounts
	for _, row := range rows {
		switch entities.TokenStatus(row.Status) {
		case entities.TokenStatusUsed:
			counts.Used = row.Total
		case entities.TokenStatusUnused:
			counts.Unused = row.Total
		case entities.TokenStatusInvalidated:
			counts.Invalidated = row.Total
		}
		counts.Total += row.Total
	}
	return counts, nil
}

func (r *Repository) IntegrityReports(ctx context.Context) ([]entities.IntegrityReport, error) {
	var rows []struct {
		ElectionID string
		Votes      int64
		UsedTokens int64
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT e.id AS election_id,
			(SELECT COUNT(*) FROM votes v WHERE v.election_id = e.id) AS votes,
			(SELECT COUNT(*) FROM tokens t WHERE t.election_id = e.id AND t.status = ?) AS used_tokens
		FROM elections e
		WHERE e.status <> ?
		ORDER BY e.id`,
		string(entities.TokenStatusUsed),
		string(entities.ElectionStatusDraft),
	).Scan(&rows).Error; err != nil {
		return nil, r.logError("election_repo_integrity_reports_failed", err)
	}
	reports := make([]entities.IntegrityReport, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, entities.IntegrityReport{
			ElectionID: row.ElectionID,
			Votes:      row.Votes,
			UsedTokens: row.UsedTokens,
		})
	}
	return reports, nil
}

// holdUnusedToken is the token-row counterpart of holdDraftElection.
func holdUnusedToken(tx *gorm.DB, tokenID string) error {
	held := tx.Model(&tokenModel{}).
		Where("id = ? AND status = ?", tokenID, string(entities.TokenStatusUnused)).
		UpdateColumn("status", gorm.Expr("status"))
	if held.Error != nil {
		return held.Error
	}
	if held.RowsAffected > 0 {
		return nil
	}
	var token tokenModel
	if err := tx.Select("status").Where("id = ?", tokenID).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrTokenInvalid
		}
		return err
	}
	if entities.TokenStatus(token.Status) == entities.TokenStatusUsed {
		return domainerrors.ErrTokenAlreadyUsed
	}
	return domainerrors.ErrTokenInvalid
}
