package quoteform

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// SubmissionMetrics exposes aggregated queue insights.
type SubmissionMetrics struct {
	Pending              int `json:"pending"`
	Processing           int `json:"processing"`
	Completed            int `json:"completed"`
	Failed               int `json:"failed"`
	OldestPendingSeconds int `json:"oldestPendingSeconds"`
}

// SubmissionStore handles persistence of quote submissions.
type SubmissionStore interface {
	Create(ctx context.Context, submission *QuoteSubmission) error
	Save(ctx context.Context, submission *QuoteSubmission) error
	FindByID(ctx context.Context, id string) (*QuoteSubmission, error)
	FindByClientReference(ctx context.Context, ref string) (*QuoteSubmission, error)
	Metrics(ctx context.Context) (SubmissionMetrics, error)
}

// IsNotFound reports whether err means the submission does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// GormSubmissionRepository persists submissions via GORM.
type GormSubmissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository constructs a repository backed by the provided DB connection.
func NewSubmissionRepository(db *gorm.DB) *GormSubmissionRepository {
	return &GormSubmissionRepository{db: db}
}

// AutoMigrate creates or updates the submissions table.
func (r *GormSubmissionRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&QuoteSubmission{})
}

// Create inserts a new submission.
func (r *GormSubmissionRepository) Create(ctx context.Context, submission *QuoteSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// Save persists changes to a submission.
func (r *GormSubmissionRepository) Save(ctx context.Context, submission *QuoteSubmission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

// FindByID locates a submission by primary key.
func (r *GormSubmissionRepository) FindByID(ctx context.Context, id string) (*QuoteSubmission, error) {
	var entity QuoteSubmission
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// FindByClientReference locates a submission by idempotency key.
func (r *GormSubmissionRepository) FindByClientReference(ctx context.Context, ref string) (*QuoteSubmission, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var entity QuoteSubmission
	if err := r.db.WithContext(ctx).First(&entity, "client_reference = ?", ref).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// Metrics aggregates queue counts and the age of the oldest open submission.
func (r *GormSubmissionRepository) Metrics(ctx context.Context) (SubmissionMetrics, error) {
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&QuoteSubmission{}).
		Select("status, COUNT(*) as total").
		Group("status").
		Find(&rows).Error; err != nil {
		return SubmissionMetrics{}, err
	}
	metrics := tally(rows)

	var oldest QuoteSubmission
	err := r.db.WithContext(ctx).
		Model(&QuoteSubmission{}).
		Where("status IN ?", []string{SubmissionPending, SubmissionProcessing}).
		Order("created_at ASC").
		Limit(1).
		Find(&oldest).Error
	if err != nil && !IsNotFound(err) {
		return metrics, err
	}
	metrics.OldestPendingSeconds = waitSeconds(oldest.CreatedAt, time.Now())
	return metrics, nil
}

type statusCount struct {
	Status string
	Total  int
}

func tally(rows []statusCount) SubmissionMetrics {
	var metrics SubmissionMetrics
	for _, row := range rows {
		switch row.Status {
		case SubmissionPending:
			metrics.Pending += row.Total
		case SubmissionProcessing:
			metrics.Processing += row.Total
		case SubmissionCompleted:
			metrics.Completed += row.Total
		case SubmissionFailed:
			metrics.Failed += row.Total
		}
	}
	return metrics
}

func waitSeconds(createdAt, now time.Time) int {
	if createdAt.IsZero() {
		return 0
	}
	wait := now.Sub(createdAt)
	if wait < 0 {
		return 0
	}
	return int(wait.Seconds())
}
