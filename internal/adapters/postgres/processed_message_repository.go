package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// processedMessageRepository tracks inbound envelope ids so a redelivered message is applied once.
type processedMessageRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func (r *processedMessageRepository) IsDuplicate(ctx context.Context, messageID string, now time.Time) (bool, error) {
	var row processedMessageModel
	err := r.db.WithContext(ctx).
		Select("message_id").
		Where("message_id = ? AND expires_at > ?", messageID, now.UTC()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// MarkProcessed records messageID. A row left over from an expired window is refreshed in place.
func (r *processedMessageRepository) MarkProcessed(ctx context.Context, messageID, routingKey string, expiresAt time.Time) error {
	row := newProcessedMessage(messageID, routingKey, r.now(), expiresAt)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"routing_key", "processed_at", "expires_at"}),
	}).Create(&row).Error
}

func newProcessedMessage(messageID, routingKey string, processedAt, expiresAt time.Time) processedMessageModel {
	return processedMessageModel{
		MessageID:   messageID,
		RoutingKey:  routingKey,
		ProcessedAt: processedAt.UTC(),
		ExpiresAt:   expiresAt.UTC(),
	}
}

var _ ports.EventDedupRepository = (*processedMessageRepository)(nil)
