package models

import (
	"time"

	"gorm.io/datatypes"
)

// Log levels
const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// Log categories
const (
	LogCategoryWebhook     = "webhook"
	LogCategoryMessage     = "message"
	LogCategoryCommand     = "command"
	LogCategoryQuiz        = "quiz"
	LogCategoryParticipant = "participant"
	LogCategoryRAG         = "rag"
	LogCategoryLLM         = "llm"
	LogCategoryError       = "error"
	LogCategorySystem      = "system"
	LogCategoryAPI         = "api"
)

// QuizLogEntry is one audit record of a quiz event.
type QuizLogEntry struct {
	ID            uint           `gorm:"primaryKey"`
	Level         string         `gorm:"type:varchar(10);not null;index"`
	Category      string         `gorm:"type:varchar(20);not null;index"`
	Event         string         `gorm:"type:varchar(50);not null;index"`
	Message       string         `gorm:"type:text"`
	GroupID       string         `gorm:"type:varchar(64);index"`
	ParticipantID string         `gorm:"type:varchar(64);index"`
	GameID        string         `gorm:"type:varchar(16);index"`
	Ordinal       int            `gorm:"default:0"`
	Data          datatypes.JSON `gorm:"type:jsonb"`
	Error         string         `gorm:"type:text"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index"`
}

func (QuizLogEntry) TableName() string {
	return "quiz_logs"
}
