package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dmarinho/rollback-engine/pkg/database"
	"github.com/dmarinho/rollback-engine/pkg/models"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open test database")

	require.NoError(t, AutoMigrate(db), "failed to run migrations")
	require.True(t, database.HasTable(db, &DeploymentRecord{}))

	t.Cleanup(func() {
		db.Exec("DELETE FROM deployment_records")
	})

	return db
}

func succeededRecord(deploymentID, version string, completedAt time.Time) *DeploymentRecord {
	completed := completedAt
	return &DeploymentRecord{
		DeploymentID: deploymentID,
		Environment:  models.EnvProduction,
		Version:      version,
		Status:       models.RecordSucceeded,
		StartedAt:    completedAt.Add(-10 * time.Minute),
		CompletedAt:  &completed,
	}
}

func TestGetLastKnownGood_PicksMostRecentSucceeded(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordDeployment(ctx, succeededRecord("production-1", "v1", base)))
	require.NoError(t, repo.RecordDeployment(ctx, succeededRecord("production-2", "v2", base.Add(2*time.Hour))))
	require.NoError(t, repo.RecordDeployment(ctx, succeededRecord("production-3", "v3", base.Add(time.Hour))))

	// A more recent failed deployment must not win
	failed := succeededRecord("production-4", "v4", base.Add(3*time.Hour))
	failed.Status = models.RecordFailed
	require.NoError(t, repo.RecordDeployment(ctx, failed))

	record, err := repo.GetLastKnownGood(ctx, models.EnvProduction)
	require.NoError(t, err)
	assert.Equal(t, "v2", record.Version)
	assert.Equal(t, "production-2", record.DeploymentID)
}

func TestGetLastKnownGood_NoHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	record, err := repo.GetLastKnownGood(ctx, models.EnvStaging)
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrNoKnownGoodDeployment)
}

func TestGetLastKnownGood_ScopedToEnvironment(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	record := succeededRecord("production-1", "v1", time.Now())
	require.NoError(t, repo.RecordDeployment(ctx, record))

	_, err := repo.GetLastKnownGood(ctx, models.EnvTest)
	assert.ErrorIs(t, err, ErrNoKnownGoodDeployment)
}

func TestRecordDeployment_DefaultsToInProgress(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	record := &DeploymentRecord{
		DeploymentID: "test-1",
		Environment:  models.EnvTest,
		Version:      "abc123",
	}
	require.NoError(t, repo.RecordDeployment(ctx, record))

	stored, err := repo.GetByDeploymentID(ctx, "test-1")
	require.NoError(t, err)
	assert.Equal(t, models.RecordInProgress, stored.Status)
	assert.False(t, stored.StartedAt.IsZero())
}

func TestMarkSucceededAndFailed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.RecordDeployment(ctx, &DeploymentRecord{
		DeploymentID: "staging-1",
		Environment:  models.EnvStaging,
		Version:      "v1",
	}))
	require.NoError(t, repo.RecordDeployment(ctx, &DeploymentRecord{
		DeploymentID: "staging-2",
		Environment:  models.EnvStaging,
		Version:      "v2",
	}))

	require.NoError(t, repo.MarkSucceeded(ctx, "staging-1"))
	require.NoError(t, repo.MarkFailed(ctx, "staging-2"))

	succeeded, err := repo.GetByDeploymentID(ctx, "staging-1")
	require.NoError(t, err)
	assert.Equal(t, models.RecordSucceeded, succeeded.Status)
	assert.NotNil(t, succeeded.CompletedAt)

	failed, err := repo.GetByDeploymentID(ctx, "staging-2")
	require.NoError(t, err)
	assert.Equal(t, models.RecordFailed, failed.Status)

	// Only staging-1 qualifies as last known good
	record, err := repo.GetLastKnownGood(ctx, models.EnvStaging)
	require.NoError(t, err)
	assert.Equal(t, "staging-1", record.DeploymentID)
}

func TestRecordRollbackOutcome(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	deployment := &models.Deployment{
		DeploymentID:        "production-9",
		Environment:         models.EnvProduction,
		Version:             "v9",
		PreviousVersion:     "v8",
		PipelineExecutionID: "exec-9",
	}

	require.NoError(t, repo.RecordRollbackOutcome(ctx, deployment, &models.RollbackResult{
		Success:  true,
		Level:    models.LevelStage,
		Duration: 2 * time.Minute,
	}))

	stored, err := repo.GetByDeploymentID(ctx, "rollback-production-9")
	require.NoError(t, err)
	assert.Equal(t, models.RecordRolledBack, stored.Status)
	assert.Equal(t, "v9", stored.Version)
	assert.Equal(t, "exec-9", stored.PipelineExecutionID)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, stored.StartedAt.Before(*stored.CompletedAt))

	failed := &models.Deployment{DeploymentID: "production-10", Environment: models.EnvProduction, Version: "v10"}
	require.NoError(t, repo.RecordRollbackOutcome(ctx, failed, &models.RollbackResult{
		Success: false,
		Level:   models.LevelNone,
		Reason:  "Stage rollback failed",
	}))

	stored, err = repo.GetByDeploymentID(ctx, "rollback-production-10")
	require.NoError(t, err)
	assert.Equal(t, models.RecordRollbackFailed, stored.Status)
}

func TestRecordRollbackOutcome_NeverLastKnownGood(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordDeployment(ctx, succeededRecord("production-1", "v1", base)))

	// A later successful rollback must not displace the genuine deployment
	require.NoError(t, repo.RecordRollbackOutcome(ctx, &models.Deployment{
		DeploymentID: "production-2",
		Environment:  models.EnvProduction,
		Version:      "v2",
	}, &models.RollbackResult{Success: true, Level: models.LevelStage}))

	record, err := repo.GetLastKnownGood(ctx, models.EnvProduction)
	require.NoError(t, err)
	assert.Equal(t, "production-1", record.DeploymentID)
	assert.Equal(t, "v1", record.Version)
}

func TestMarkSucceeded_UnknownRecord(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	err := repo.MarkSucceeded(ctx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deployment record not found")
}

func TestListRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.RecordDeployment(ctx, &DeploymentRecord{
			DeploymentID: "test-" + string(rune('a'+i)),
			Environment:  models.EnvTest,
			Version:      "v1",
		}))
	}

	records, err := repo.ListRecent(ctx, models.EnvTest, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestCountByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.RecordDeployment(ctx, &DeploymentRecord{
		DeploymentID: "production-1",
		Environment:  models.EnvProduction,
		Version:      "v1",
	}))
	require.NoError(t, repo.MarkSucceeded(ctx, "production-1"))

	count, err := repo.CountByStatus(ctx, models.EnvProduction, models.RecordSucceeded)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
