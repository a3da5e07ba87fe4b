package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmarinho/rollback-engine/pkg/models"
)

// ErrNoKnownGoodDeployment is returned when an environment has no succeeded
// deployment on record. It is an expected, handleable outcome for callers.
var ErrNoKnownGoodDeployment = errors.New("no last known good deployment found")

// Repository provides database operations for deployment history
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new history repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetLastKnownGood retrieves the most recent succeeded deployment for an
// environment. Recency is judged by completion time, not wall-clock ties.
func (r *Repository) GetLastKnownGood(ctx context.Context, environment models.Environment) (*DeploymentRecord, error) {
	var record DeploymentRecord

	if err := r.db.WithContext(ctx).
		Where("environment = ? AND status = ?", environment, models.RecordSucceeded).
		Order("completed_at DESC, created_at DESC").
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoKnownGoodDeployment
		}
		return nil, fmt.Errorf("failed to query last known good deployment: %w", err)
	}

	return &record, nil
}

// RecordDeployment creates a new in-progress deployment record. This is the
// pipeline's write path; the rollback orchestrator never calls it.
func (r *Repository) RecordDeployment(ctx context.Context, record *DeploymentRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = models.RecordInProgress
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create deployment record: %w", err)
	}

	return nil
}

// RecordRollbackOutcome persists the terminal result of a rollback as a
// completed history record, so operators and the history subcommand can see
// what the engine did. Rollback records carry their own statuses and are
// never candidates for last-known-good lookups.
func (r *Repository) RecordRollbackOutcome(ctx context.Context, deployment *models.Deployment, result *models.RollbackResult) error {
	now := time.Now()
	status := models.RecordRolledBack
	if !result.Success {
		status = models.RecordRollbackFailed
	}

	record := &DeploymentRecord{
		ID:                  uuid.New(),
		DeploymentID:        fmt.Sprintf("rollback-%s", deployment.DeploymentID),
		Environment:         deployment.Environment,
		Version:             deployment.Version,
		Status:              status,
		PipelineExecutionID: deployment.PipelineExecutionID,
		StartedAt:           now.Add(-result.Duration),
		CompletedAt:         &now,
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to record rollback outcome: %w", err)
	}

	return nil
}

// MarkSucceeded marks a deployment record as succeeded and stamps completion
func (r *Repository) MarkSucceeded(ctx context.Context, deploymentID string) error {
	return r.markCompleted(ctx, deploymentID, models.RecordSucceeded)
}

// MarkFailed marks a deployment record as failed and stamps completion
func (r *Repository) MarkFailed(ctx context.Context, deploymentID string) error {
	return r.markCompleted(ctx, deploymentID, models.RecordFailed)
}

func (r *Repository) markCompleted(ctx context.Context, deploymentID string, status models.RecordStatus) error {
	now := time.Now()

	result := r.db.WithContext(ctx).
		Model(&DeploymentRecord{}).
		Where("deployment_id = ?", deploymentID).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update deployment record status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("deployment record not found: %s", deploymentID)
	}

	return nil
}

// GetByDeploymentID retrieves a record by its deployment identifier
func (r *Repository) GetByDeploymentID(ctx context.Context, deploymentID string) (*DeploymentRecord, error) {
	var record DeploymentRecord

	if err := r.db.WithContext(ctx).
		First(&record, "deployment_id = ?", deploymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("deployment record not found: %s", deploymentID)
		}
		return nil, fmt.Errorf("failed to get deployment record: %w", err)
	}

	return &record, nil
}

// ListRecent retrieves the most recent records for an environment
func (r *Repository) ListRecent(ctx context.Context, environment models.Environment, limit int) ([]DeploymentRecord, error) {
	var records []DeploymentRecord

	if err := r.db.WithContext(ctx).
		Where("environment = ?", environment).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list deployment records: %w", err)
	}

	return records, nil
}

// CountByStatus counts records for an environment in a given status
func (r *Repository) CountByStatus(ctx context.Context, environment models.Environment, status models.RecordStatus) (int64, error) {
	var count int64

	if err := r.db.WithContext(ctx).
		Model(&DeploymentRecord{}).
		Where("environment = ? AND status = ?", environment, status).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count deployment records: %w", err)
	}

	return count, nil
}
