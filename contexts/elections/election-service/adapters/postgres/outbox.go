package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
	defaultOutboxPage     = 100
)

// AppendOutbox stores the envelope for the relay. Appending the same event id
// twice is a no-op when the payload matches and ErrConflict otherwise.
func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	row, err := newOutboxRow(envelope)
	if err != nil {
		return r.logError("election_repo_outbox_encode_failed", err, "event_type", envelope.EventType)
	}
	db := r.db.WithContext(ctx)
	inserted, err := insertOnce(db, &row, "outbox_id")
	if err != nil {
		return r.logError("election_repo_outbox_append_failed", err, "outbox_id", row.OutboxID)
	}
	if inserted {
		return nil
	}
	var stored outboxModel
	if err := db.Select("payload").Where("outbox_id = ?", row.OutboxID).Take(&stored).Error; err != nil {
		return r.logError("election_repo_outbox_reload_failed", err, "outbox_id", row.OutboxID)
	}
	if !bytes.Equal(stored.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxPage
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC, outbox_id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_outbox_list_failed", err, "limit", limit)
	}
	messages := make([]ports.OutboxMessage, len(rows))
	for i, row := range rows {
		messages[i] = row.toMessage()
	}
	return messages, nil
}

// MarkOutboxPublished only moves pending rows, so two relays racing on the
// same row cannot both report it published.
func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	outboxID = strings.TrimSpace(outboxID)
	marked := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ? AND status = ?", outboxID, outboxStatusPending).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if marked.Error != nil {
		return r.logError("election_repo_outbox_mark_failed", marked.Error, "outbox_id", outboxID)
	}
	if marked.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

// ReserveEvent releases a lapsed claim and takes a fresh one in a single
// transaction. Lapse is judged against reservation.Now, never the wall clock.
func (r *Repository) ReserveEvent(ctx context.Context, reservation ports.EventReservation) (bool, error) {
	claim := eventDedupModel{
		EventID:     strings.TrimSpace(reservation.EventID),
		PayloadHash: strings.TrimSpace(reservation.PayloadHash),
		ExpiresAt:   reservation.ExpiresAt.UTC(),
		ProcessedAt: reservation.Now.UTC(),
	}
	replay := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ? AND expires_at < ?", claim.EventID, claim.ProcessedAt).
			Delete(&eventDedupModel{}).Error; err != nil {
			return err
		}
		inserted, err := insertOnce(tx, &claim, "event_id")
		if err != nil || inserted {
			return err
		}
		var held eventDedupModel
		if err := tx.Select("payload_hash").Where("event_id = ?", claim.EventID).Take(&held).Error; err != nil {
			return err
		}
		if held.PayloadHash != claim.PayloadHash {
			return domainerrors.ErrConflict
		}
		replay = true
		return nil
	})
	if err != nil {
		return false, r.logError("election_repo_reserve_event_failed", err, "event_id", claim.EventID)
	}
	return replay, nil
}

// insertOnce inserts row unless key already exists and reports whether it did.
func insertOnce(db *gorm.DB, row any, key string) (bool, error) {
	created := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: key}},
		DoNothing: true,
	}).Create(row)
	return created.RowsAffected > 0, created.Error
}

func newOutboxRow(envelope ports.EventEnvelope) (outboxModel, error) {
	if strings.TrimSpace(envelope.EventType) == "" {
		return outboxModel{}, errors.New("outbox envelope has no event type")
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return outboxModel{}, err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row, nil
}

func (m outboxModel) toMessage() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}
