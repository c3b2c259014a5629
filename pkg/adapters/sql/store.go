package sql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aretw0/rfqflow/pkg/domain"
)

// Store implements ports.Checkpointer and ports.HistoryReader.
// Every Save also appends the checkpoint to the thread's version history.
type Store struct {
	db           *gorm.DB
	historyLimit int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithHistoryLimit keeps only the newest n versions of each thread. Zero keeps all.
func WithHistoryLimit(n int) StoreOption {
	return func(s *Store) { s.historyLimit = n }
}

// NewStore creates a checkpoint store. Migrate must have run on db.
func NewStore(db *gorm.DB, opts ...StoreOption) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists the checkpoint and records it as a new version.
func (s *Store) Save(ctx context.Context, threadID string, cp *domain.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := threadRow{
			ThreadID:  threadID,
			RunStatus: string(cp.RunStatus),
			Version:   cp.Version,
			Data:      data,
			UpdatedAt: cp.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("save thread: %w", err)
		}
		if err := tx.Create(&versionRow{ThreadID: threadID, Version: cp.Version, Data: data}).Error; err != nil {
			return fmt.Errorf("save version: %w", err)
		}
		if s.historyLimit > 0 {
			keep := tx.Model(&versionRow{}).Select("id").Where("thread_id = ?", threadID).Order("id DESC").Limit(s.historyLimit)
			if err := tx.Where("thread_id = ? AND id NOT IN (?)", threadID, keep).Delete(&versionRow{}).Error; err != nil {
				return fmt.Errorf("prune versions: %w", err)
			}
		}
		return nil
	})
}

// Load returns the latest checkpoint of a thread.
func (s *Store) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	var row threadRow
	err := s.db.WithContext(ctx).Where("thread_id = ?", threadID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load thread: %w", err)
	}
	return decode(row.Data)
}

// Delete removes a thread and its history.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", threadID).Delete(&versionRow{}).Error; err != nil {
			return err
		}
		return tx.Where("thread_id = ?", threadID).Delete(&threadRow{}).Error
	})
}

// List returns every thread id in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.WithContext(ctx).Model(&threadRow{}).Order("thread_id").Pluck("thread_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return ids, nil
}

// History returns the recorded versions of a thread, oldest first.
func (s *Store) History(ctx context.Context, threadID string) ([]*domain.Checkpoint, error) {
	var rows []versionRow
	if err := s.db.WithContext(ctx).Where("thread_id = ?", threadID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrThreadNotFound
	}
	out := make([]*domain.Checkpoint, 0, len(rows))
	for _, r := range rows {
		cp, err := decode(r.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func decode(data []byte) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}
