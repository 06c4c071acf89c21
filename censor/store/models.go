package store

import (
	"time"
)

type AuditLog struct {
	ID               string `gorm:"primaryKey"`
	Content          string `gorm:"not null"`
	Source           string `gorm:"not null;index:idx_logs_source"`
	MessageTimestamp int64  `gorm:"not null;index:idx_logs_time"`
	RiskLevel        int    `gorm:"not null;index:idx_logs_risk"`
	// JSON array of reason strings
	Reason string `gorm:"not null"`
	// JSON objects; nil when empty
	ResultExtra *string
	EntryExtra  *string
	CreatedAt   time.Time
}

type SensitiveWord struct {
	ID        string `gorm:"primaryKey"`
	Word      string `gorm:"not null;uniqueIndex"`
	UpdatedAt time.Time
}

type BlacklistEntry struct {
	ID         string `gorm:"primaryKey"`
	Identifier string `gorm:"not null;uniqueIndex"`
	Reason     string
	UpdatedAt  time.Time
}

func (BlacklistEntry) TableName() string {
	return "blacklist"
}
