package resultstore

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	domainCache "github.com/lumio-chat/inlinegw/domains/cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// resultEntryModel is the persistence model for GORM. The domain struct
// stays free of storage tags.
type resultEntryModel struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Data      []byte    `gorm:"column:data"`
	Timestamp time.Time `gorm:"column:timestamp;index"`
}

func (resultEntryModel) TableName() string {
	return "inline_results"
}

// GormResultStore implements cache.IResultStore on a relational database.
// Each Get/Put is a single statement or transaction, so readers never see
// a partially written entry.
type GormResultStore struct {
	db *gorm.DB
}

func NewGormResultStore(db *gorm.DB) *GormResultStore {
	return &GormResultStore{db: db}
}

// Init initializes the schema using AutoMigrate.
func (s *GormResultStore) Init(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&resultEntryModel{})
}

func (s *GormResultStore) Get(ctx context.Context, key string) (*domainCache.CachedEntry, error) {
	var model resultEntryModel
	err := s.db.WithContext(ctx).First(&model, "key = ?", key).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &domainCache.CachedEntry{Data: model.Data, Timestamp: model.Timestamp}, nil
}

// Put upserts the entry and, when the table has grown past the policy's
// high watermark, evicts oldest entries down to the low watermark inside
// the same transaction.
func (s *GormResultStore) Put(ctx context.Context, key string, entry domainCache.CachedEntry, policy domainCache.EvictionPolicy) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := resultEntryModel{Key: key, Data: entry.Data, Timestamp: entry.Timestamp}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "timestamp"}),
		}).Create(&model).Error; err != nil {
			return err
		}

		if policy.HighWater <= 0 || policy.LowWater <= 0 {
			return nil
		}

		var count int64
		if err := tx.Model(&resultEntryModel{}).Count(&count).Error; err != nil {
			return err
		}
		excess := evictionExcess(count, policy)
		if excess == 0 {
			return nil
		}

		return tx.Exec(
			`DELETE FROM inline_results WHERE key IN (SELECT key FROM inline_results ORDER BY timestamp ASC, key ASC LIMIT ?)`,
			excess,
		).Error
	})
}

func (s *GormResultStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&resultEntryModel{}, "key = ?", key).Error
}

func (s *GormResultStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&resultEntryModel{}).Count(&count).Error
	return count, err
}

func (s *GormResultStore) Stats(ctx context.Context) (domainCache.CacheStats, error) {
	var row struct {
		Entries   int64
		TotalSize int64
	}
	err := s.db.WithContext(ctx).Model(&resultEntryModel{}).
		Select("COUNT(*) AS entries, COALESCE(SUM(LENGTH(data)), 0) AS total_size").
		Scan(&row).Error
	if err != nil {
		return domainCache.CacheStats{}, err
	}

	stats := domainCache.CacheStats{
		Entries:   row.Entries,
		TotalSize: row.TotalSize,
		HumanSize: humanize.Bytes(uint64(row.TotalSize)),
	}
	if row.Entries > 0 {
		var oldest resultEntryModel
		if err := s.db.WithContext(ctx).Order("timestamp ASC").First(&oldest).Error; err == nil {
			stats.Oldest = &oldest.Timestamp
		}
	}
	return stats, nil
}

func (s *GormResultStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec(`DELETE FROM inline_results`).Error
}

func (s *GormResultStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
