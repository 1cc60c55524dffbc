package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/veritas-edu/analysis-service/internal/models"
)

// ErrNotFound is returned when a requested snapshot does not exist.
var ErrNotFound = errors.New("record not found")

// IsNotFoundError reports whether err means the record is absent.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ===== SHARED FILTER STRUCTS =====

type SnapshotFilters struct {
	UpdatedAfter *time.Time `json:"updated_after"`
	Limit        int        `json:"limit"`
	Offset       int        `json:"offset"`
}

// SnapshotInfo is the listing projection; full snapshots are loaded per exam.
type SnapshotInfo struct {
	ExamID        string    `json:"exam_id"`
	Title         string    `json:"title"`
	VariantCount  int       `json:"variant_count"`
	ResponseCount int       `json:"response_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ===== SNAPSHOT REPOSITORY =====

// SnapshotRepository reads exam snapshots written by upstream services.
type SnapshotRepository interface {
	GetByExamID(ctx context.Context, examID string) (*models.ExamSnapshot, error)
	List(ctx context.Context, filters SnapshotFilters) ([]*SnapshotInfo, error)
	Exists(ctx context.Context, examID string) (bool, error)
}
