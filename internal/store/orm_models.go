package store

import "time"

const (
	outcomeCompleted     = "completed"
	outcomeSkipped       = "skipped"
	outcomeNeedsFollowUp = "needs_follow_up"
)

type runRow struct {
	RunID        string    `gorm:"primaryKey;size:64"`
	ThreadID     string    `gorm:"size:191;not null;index:idx_runs_thread_started,priority:1"`
	StartedAt    time.Time `gorm:"not null;index:idx_runs_thread_started,priority:2"`
	CompletedAt  time.Time `gorm:"not null"`
	BlockersJSON string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (runRow) TableName() string {
	return "standup_runs"
}

type participantResultRow struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	RunID       string `gorm:"size:64;not null;index"`
	Position    int    `gorm:"not null"`
	Name        string `gorm:"size:191;not null"`
	Outcome     string `gorm:"size:32;not null"`
	Summary     string `gorm:"type:text"`
	UpdateCount int    `gorm:"not null"`
	ReasonsJSON string `gorm:"type:text"`
}

func (participantResultRow) TableName() string {
	return "standup_participant_results"
}
