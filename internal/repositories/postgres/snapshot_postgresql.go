package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/veritas-edu/analysis-service/internal/cache"
	"github.com/veritas-edu/analysis-service/internal/models"
	"github.com/veritas-edu/analysis-service/internal/repositories"
)

// examSnapshotRow is the persisted form of an exam snapshot. Upstream
// services write these rows; this service only reads them. The payloads stay
// as JSONB because their shape is owned by the producers.
type examSnapshotRow struct {
	ExamID             string         `gorm:"column:exam_id;primaryKey"`
	Title              string         `gorm:"column:title"`
	Variants           datatypes.JSON `gorm:"column:variants"`
	Responses          datatypes.JSON `gorm:"column:responses"`
	VariantSimilarity  datatypes.JSON `gorm:"column:variant_similarity"`
	ResponseSimilarity datatypes.JSON `gorm:"column:response_similarity"`
	UpdatedAt          time.Time      `gorm:"column:updated_at"`
}

func (examSnapshotRow) TableName() string {
	return "exam_snapshots"
}

// SnapshotPostgreSQL implements SnapshotRepository over the shared
// exam_snapshots table, with a short existence cache in front.
type SnapshotPostgreSQL struct {
	db          *gorm.DB
	cacheHelper *cache.CacheHelper
}

func NewSnapshotPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.SnapshotRepository {
	return &SnapshotPostgreSQL{
		db:          db,
		cacheHelper: cache.NewCacheHelper(redisClient, cache.ExistsCacheConfig.Prefix),
	}
}

// GetByExamID loads and decodes the full snapshot for one exam.
func (r *SnapshotPostgreSQL) GetByExamID(ctx context.Context, examID string) (*models.ExamSnapshot, error) {
	var row examSnapshotRow
	err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load exam snapshot: %w", err)
	}

	return decodeSnapshotRow(&row)
}

// List returns listing projections, most recently updated first.
func (r *SnapshotPostgreSQL) List(ctx context.Context, filters repositories.SnapshotFilters) ([]*repositories.SnapshotInfo, error) {
	query := r.db.WithContext(ctx).Model(&examSnapshotRow{})

	if filters.UpdatedAfter != nil {
		query = query.Where("updated_at > ?", *filters.UpdatedAfter)
	}

	query = query.Order("updated_at DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var rows []examSnapshotRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list exam snapshots: %w", err)
	}

	infos := make([]*repositories.SnapshotInfo, 0, len(rows))
	for i := range rows {
		snapshot, err := decodeSnapshotRow(&rows[i])
		if err != nil {
			return nil, err
		}
		infos = append(infos, &repositories.SnapshotInfo{
			ExamID:        snapshot.ExamID,
			Title:         snapshot.Title,
			VariantCount:  len(snapshot.Variants),
			ResponseCount: len(snapshot.Responses),
			UpdatedAt:     snapshot.UpdatedAt,
		})
	}

	return infos, nil
}

// Exists checks snapshot presence, consulting the existence cache first.
func (r *SnapshotPostgreSQL) Exists(ctx context.Context, examID string) (bool, error) {
	cacheKey := fmt.Sprintf("exam:%s", examID)

	var cached bool
	if err := r.cacheHelper.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&examSnapshotRow{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check exam snapshot existence: %w", err)
	}

	exists := count > 0
	_ = r.cacheHelper.Set(ctx, cacheKey, exists, cache.ExistsCacheConfig.TTL)

	return exists, nil
}

func decodeSnapshotRow(row *examSnapshotRow) (*models.ExamSnapshot, error) {
	snapshot := &models.ExamSnapshot{
		ExamID:    row.ExamID,
		Title:     row.Title,
		UpdatedAt: row.UpdatedAt,
	}

	if len(row.Variants) > 0 {
		if err := json.Unmarshal(row.Variants, &snapshot.Variants); err != nil {
			return nil, fmt.Errorf("failed to decode variants for exam %s: %w", row.ExamID, err)
		}
	}
	if len(row.Responses) > 0 {
		if err := json.Unmarshal(row.Responses, &snapshot.Responses); err != nil {
			return nil, fmt.Errorf("failed to decode responses for exam %s: %w", row.ExamID, err)
		}
	}
	if len(row.VariantSimilarity) > 0 {
		if err := json.Unmarshal(row.VariantSimilarity, &snapshot.VariantSimilarity); err != nil {
			return nil, fmt.Errorf("failed to decode variant similarity for exam %s: %w", row.ExamID, err)
		}
	}
	if len(row.ResponseSimilarity) > 0 {
		if err := json.Unmarshal(row.ResponseSimilarity, &snapshot.ResponseSimilarity); err != nil {
			return nil, fmt.Errorf("failed to decode response similarity for exam %s: %w", row.ExamID, err)
		}
	}

	return snapshot, nil
}
