package history

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmarinho/rollback-engine/pkg/database"
	"github.com/dmarinho/rollback-engine/pkg/models"
)

// DeploymentRecord is a persisted deployment history entry, queried by
// (environment, status) to answer last-known-good lookups
type DeploymentRecord struct {
	ID                  uuid.UUID           `gorm:"type:uuid;primary_key"`
	DeploymentID        string              `gorm:"not null;uniqueIndex"`
	Environment         models.Environment  `gorm:"not null;index:idx_env_status"`
	Version             string              `gorm:"not null"`
	Status              models.RecordStatus `gorm:"not null;index:idx_env_status"`
	PipelineExecutionID string
	StartedAt           time.Time
	CompletedAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB) error {
	return database.Migrate(db, &DeploymentRecord{})
}
