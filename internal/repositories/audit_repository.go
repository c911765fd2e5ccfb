package repositories

import (
	"context"
	"encoding/json"

	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLogger records quiz events. Implementations must never block the
// game flow on failure.
type AuditLogger interface {
	Record(ctx context.Context, entry *models.QuizLogEntry)
}

// AuditData encodes structured event details for QuizLogEntry.Data.
func AuditData(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record inserts the entry, logging instead of failing when the database is down.
func (r *AuditRepository) Record(ctx context.Context, entry *models.QuizLogEntry) {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Warn("Failed to record audit entry", "event", entry.Event, "group_id", entry.GroupID, "error", err)
	}
}

// Recent returns the latest entries of a group, newest first.
func (r *AuditRepository) Recent(ctx context.Context, groupID string, limit int) ([]models.QuizLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.QuizLogEntry
	result := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to list audit entries")
	}
	return entries, nil
}

// LogAuditLogger writes audit events to the structured log only. Used when
// no database is configured.
type LogAuditLogger struct{}

func (LogAuditLogger) Record(_ context.Context, entry *models.QuizLogEntry) {
	kv := []interface{}{
		"category", entry.Category,
		"event", entry.Event,
		"group_id", entry.GroupID,
	}
	if entry.ParticipantID != "" {
		kv = append(kv, "participant_id", entry.ParticipantID)
	}
	if entry.GameID != "" {
		kv = append(kv, "game_id", entry.GameID, "ordinal", entry.Ordinal)
	}
	if entry.Error != "" {
		kv = append(kv, "error", entry.Error)
	}

	switch entry.Level {
	case models.LogLevelError:
		logger.Error(entry.Message, kv...)
	case models.LogLevelWarning:
		logger.Warn(entry.Message, kv...)
	default:
		logger.Info(entry.Message, kv...)
	}
}
