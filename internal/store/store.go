// Package store archives finished standup runs for later reporting.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"rollcall.local/rollcall/internal/standup"
)

var ErrNotFound = errors.New("run not found")

type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the archive database and runs migrations.
// driver is "sqlite" (the default) or "postgres".
func NewGormStore(driver, dsn string) (*GormStore, error) {
	gormDB, err := openGorm(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open run archive: %w", err)
	}

	store := &GormStore{db: gormDB}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *GormStore) migrate() error {
	return s.db.AutoMigrate(&runRow{}, &participantResultRow{})
}

// SaveRun persists one digest atomically: the run header plus one result
// row per participant, in interview order.
func (s *GormStore) SaveRun(ctx context.Context, digest standup.Digest) error {
	blockers, err := json.Marshal(digest.Blockers)
	if err != nil {
		return fmt.Errorf("marshal blockers: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := runRow{
			RunID:        digest.RunID,
			ThreadID:     digest.ThreadID,
			StartedAt:    digest.StartedAt,
			CompletedAt:  digest.CompletedAt,
			BlockersJSON: string(blockers),
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create run: %w", err)
		}

		for _, result := range resultRowsFromDigest(digest) {
			result := result
			if err := tx.Create(&result).Error; err != nil {
				return fmt.Errorf("create participant result: %w", err)
			}
		}
		return nil
	})
}

// LatestRun returns the most recently started run for a thread.
func (s *GormStore) LatestRun(ctx context.Context, threadID string) (standup.Digest, error) {
	var row runRow
	err := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("started_at DESC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return standup.Digest{}, ErrNotFound
		}
		return standup.Digest{}, fmt.Errorf("get latest run: %w", err)
	}
	return s.loadDigest(ctx, row)
}

// RecentRuns returns up to limit digests for a thread, newest first.
func (s *GormStore) RecentRuns(ctx context.Context, threadID string, limit int) ([]standup.Digest, error) {
	query := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []runRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	digests := make([]standup.Digest, 0, len(rows))
	for _, row := range rows {
		digest, err := s.loadDigest(ctx, row)
		if err != nil {
			return nil, err
		}
		digests = append(digests, digest)
	}
	return digests, nil
}

func (s *GormStore) loadDigest(ctx context.Context, row runRow) (standup.Digest, error) {
	var results []participantResultRow
	err := s.db.WithContext(ctx).
		Where("run_id = ?", row.RunID).
		Find(&results).Error
	if err != nil {
		return standup.Digest{}, fmt.Errorf("get participant results: %w", err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Position < results[j].Position })

	digest := standup.Digest{
		RunID:       row.RunID,
		ThreadID:    row.ThreadID,
		StartedAt:   row.StartedAt,
		CompletedAt: row.CompletedAt,
	}
	if row.BlockersJSON != "" {
		if err := json.Unmarshal([]byte(row.BlockersJSON), &digest.Blockers); err != nil {
			return standup.Digest{}, fmt.Errorf("unmarshal blockers: %w", err)
		}
	}

	for _, result := range results {
		switch result.Outcome {
		case outcomeCompleted:
			digest.Completed = append(digest.Completed, standup.ParticipantSummary{
				Name:        result.Name,
				Summary:     result.Summary,
				UpdateCount: result.UpdateCount,
			})
		case outcomeSkipped:
			digest.Skipped = append(digest.Skipped, result.Name)
		case outcomeNeedsFollowUp:
			followUp := standup.FollowUp{Name: result.Name}
			if result.ReasonsJSON != "" {
				if err := json.Unmarshal([]byte(result.ReasonsJSON), &followUp.Reasons); err != nil {
					return standup.Digest{}, fmt.Errorf("unmarshal follow-up reasons: %w", err)
				}
			}
			digest.NeedsFollowUp = append(digest.NeedsFollowUp, followUp)
		}
	}
	return digest, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

func resultRowsFromDigest(digest standup.Digest) []participantResultRow {
	rows := make([]participantResultRow, 0, len(digest.Completed)+len(digest.Skipped)+len(digest.NeedsFollowUp))
	position := 0

	for _, summary := range digest.Completed {
		rows = append(rows, participantResultRow{
			RunID:       digest.RunID,
			Position:    position,
			Name:        summary.Name,
			Outcome:     outcomeCompleted,
			Summary:     summary.Summary,
			UpdateCount: summary.UpdateCount,
		})
		position++
	}
	for _, name := range digest.Skipped {
		rows = append(rows, participantResultRow{
			RunID:    digest.RunID,
			Position: position,
			Name:     name,
			Outcome:  outcomeSkipped,
		})
		position++
	}
	for _, followUp := range digest.NeedsFollowUp {
		reasons, _ := json.Marshal(followUp.Reasons)
		rows = append(rows, participantResultRow{
			RunID:       digest.RunID,
			Position:    position,
			Name:        followUp.Name,
			Outcome:     outcomeNeedsFollowUp,
			ReasonsJSON: string(reasons),
		})
		position++
	}
	return rows
}
