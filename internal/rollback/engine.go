package rollback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmarinho/rollback-engine/internal/artifact"
	"github.com/dmarinho/rollback-engine/internal/history"
	"github.com/dmarinho/rollback-engine/internal/infra"
	"github.com/dmarinho/rollback-engine/internal/notify"
	"github.com/dmarinho/rollback-engine/pkg/models"
)

// DefaultStabilizationInterval is the wait after a revert before health is
// judged, so deployed workloads receive traffic and emit metrics.
const DefaultStabilizationInterval = 60 * time.Second

// EnvironmentPriority is the fixed order for a full rollback. Production is
// restored first to bound blast radius; staging and test follow to keep the
// promotion chain consistent with production's restored state.
var EnvironmentPriority = []models.Environment{
	models.EnvProduction,
	models.EnvStaging,
	models.EnvTest,
}

// HealthChecker reports whether an environment's deployment alarms are clear
type HealthChecker interface {
	Check(ctx context.Context, environment models.Environment) (*models.HealthCheckResult, error)
}

// HistoryStore answers last-known-good deployment lookups
type HistoryStore interface {
	GetLastKnownGood(ctx context.Context, environment models.Environment) (*history.DeploymentRecord, error)
}

// Notifier publishes status messages; delivery is best effort
type Notifier interface {
	Notify(ctx context.Context, severity notify.Severity, subject, body string, fields map[string]string)
}

// Engine coordinates artifact storage, infrastructure, health monitoring,
// history, and notification to execute and report on a rollback. It attempts
// a single-environment (stage) rollback first and escalates to a
// multi-environment (full) rollback when that fails. Escalation is a
// one-shot fallback, not a retry loop.
//
// All exported operations are total: they always return a RollbackResult and
// never propagate collaborator errors to the caller.
//
// The engine performs no locking and is not safe to invoke concurrently for
// the same environment; callers must hold an external scheduling lock.
type Engine struct {
	artifacts artifact.Store
	reverter  infra.Reverter
	health    HealthChecker
	history   HistoryStore
	notifier  Notifier
	sleeper   Sleeper

	stabilization time.Duration
	logger        zerolog.Logger
}

// NewEngine creates a rollback engine with production defaults
func NewEngine(
	artifacts artifact.Store,
	reverter infra.Reverter,
	health HealthChecker,
	historyStore HistoryStore,
	notifier Notifier,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		artifacts:     artifacts,
		reverter:      reverter,
		health:        health,
		history:       historyStore,
		notifier:      notifier,
		sleeper:       NewRealSleeper(),
		stabilization: DefaultStabilizationInterval,
		logger:        logger.With().Str("component", "rollback").Logger(),
	}
}

// SetSleeper replaces the stabilization timer (useful for testing)
func (e *Engine) SetSleeper(sleeper Sleeper) {
	e.sleeper = sleeper
}

// SetStabilizationInterval overrides the wait between revert and validation
func (e *Engine) SetStabilizationInterval(d time.Duration) {
	e.stabilization = d
}

// ExecuteRollback runs the full rollback state machine for a failed
// deployment: notify, attempt the stage rollback, escalate to a full
// rollback on failure, and report the terminal outcome.
func (e *Engine) ExecuteRollback(ctx context.Context, deployment *models.Deployment, reason string) *models.RollbackResult {
	start := time.Now()

	e.logger.Info().
		Str("deployment_id", deployment.DeploymentID).
		Str("environment", string(deployment.Environment)).
		Str("version", deployment.Version).
		Str("previous_version", deployment.PreviousVersion).
		Str("reason", reason).
		Msg("Rollback initiated")

	e.notifier.Notify(ctx, notify.SeverityCritical, notify.SubjectRollbackInitiated,
		fmt.Sprintf("Rolling back %s: %s", deployment.Environment, reason),
		e.notifyFields(deployment))

	stageResult := e.RollbackStage(ctx, deployment)
	if stageResult.Success {
		e.logger.Info().
			Str("deployment_id", deployment.DeploymentID).
			Dur("duration", stageResult.Duration).
			Msg("Stage rollback succeeded")

		e.notifier.Notify(ctx, notify.SeverityInfo, notify.SubjectRollbackSucceeded,
			fmt.Sprintf("Stage rollback of %s to version %s completed", deployment.Environment, deployment.PreviousVersion),
			e.notifyFields(deployment))

		return &models.RollbackResult{
			Success:  true,
			Level:    models.LevelStage,
			Duration: time.Since(start),
		}
	}

	e.logger.Warn().
		Str("deployment_id", deployment.DeploymentID).
		Str("reason", stageResult.Reason).
		Msg("Stage rollback failed, escalating to full rollback")

	fullResult := e.RollbackFull(ctx, deployment)
	if fullResult.Success {
		e.logger.Info().
			Str("deployment_id", deployment.DeploymentID).
			Dur("duration", fullResult.Duration).
			Msg("Full rollback succeeded")

		e.notifier.Notify(ctx, notify.SeverityWarning, notify.SubjectRollbackSucceeded,
			fmt.Sprintf("Full rollback completed after stage rollback of %s failed: %s", deployment.Environment, stageResult.Reason),
			e.notifyFields(deployment))

		return &models.RollbackResult{
			Success:  true,
			Level:    models.LevelFull,
			Duration: time.Since(start),
		}
	}

	combined := fmt.Sprintf("Stage rollback failed: %s; full rollback failed: %s",
		stageResult.Reason, fullResult.Reason)

	e.logger.Error().
		Str("deployment_id", deployment.DeploymentID).
		Str("reason", combined).
		Msg("Rollback failed, manual intervention required")

	e.notifier.Notify(ctx, notify.SeverityCritical, notify.SubjectRollbackFailed,
		fmt.Sprintf("Rollback of %s failed, manual intervention required: %s", deployment.Environment, combined),
		e.notifyFields(deployment))

	return &models.RollbackResult{
		Success:  false,
		Level:    models.LevelNone,
		Duration: time.Since(start),
		Reason:   combined,
	}
}

// RollbackStage reverts a single environment to its immediately previous
// version: restore artifacts, revert infrastructure when it changed, wait
// for stabilization, then validate health.
func (e *Engine) RollbackStage(ctx context.Context, deployment *models.Deployment) *models.RollbackResult {
	start := time.Now()
	environment := deployment.Environment

	e.logger.Info().
		Str("environment", string(environment)).
		Str("previous_version", deployment.PreviousVersion).
		Msg("Starting stage rollback")

	// Fail fast when the prior artifact set is missing; validation is skipped.
	if err := e.artifacts.Locate(ctx, environment, deployment.PreviousVersion); err != nil {
		return e.failedResult(start, environment, "locate artifacts", err)
	}

	if _, err := e.artifacts.Restore(ctx, environment, deployment.PreviousVersion); err != nil {
		return e.failedResult(start, environment, "restore artifacts", err)
	}

	if deployment.InfrastructureChanged {
		if err := e.reverter.Revert(ctx, environment, deployment.PreviousVersion); err != nil {
			return e.failedResult(start, environment, "revert infrastructure", err)
		}
	}

	result := e.ValidateRollback(ctx, environment)
	if !result.Success {
		return &models.RollbackResult{
			Success:  false,
			Level:    models.LevelNone,
			Duration: time.Since(start),
			Reason:   result.Reason,
		}
	}

	return &models.RollbackResult{
		Success:  true,
		Level:    models.LevelStage,
		Duration: time.Since(start),
	}
}

// RollbackFull reverts every environment in priority order to the last
// known-good version. It stops at the first environment whose validation
// fails; a partial multi-environment rollback is an acceptable terminal
// state and is not retried.
func (e *Engine) RollbackFull(ctx context.Context, deployment *models.Deployment) *models.RollbackResult {
	start := time.Now()

	record, err := e.history.GetLastKnownGood(ctx, models.EnvProduction)
	if err != nil {
		if errors.Is(err, history.ErrNoKnownGoodDeployment) {
			return &models.RollbackResult{
				Success:  false,
				Level:    models.LevelNone,
				Duration: time.Since(start),
				Reason:   "No last known good deployment found",
			}
		}
		return &models.RollbackResult{
			Success:  false,
			Level:    models.LevelNone,
			Duration: time.Since(start),
			Reason:   fmt.Sprintf("unexpected error: %v", err),
		}
	}

	e.logger.Info().
		Str("version", record.Version).
		Str("deployment_id", record.DeploymentID).
		Msg("Starting full rollback to last known good version")

	for _, environment := range EnvironmentPriority {
		e.logger.Info().
			Str("environment", string(environment)).
			Str("version", record.Version).
			Msg("Rolling back environment")

		if _, err := e.artifacts.Restore(ctx, environment, record.Version); err != nil {
			return &models.RollbackResult{
				Success:  false,
				Level:    models.LevelNone,
				Duration: time.Since(start),
				Reason:   fmt.Sprintf("Failed to rollback %s: %s", environment, reasonFromError(err)),
			}
		}

		result := e.ValidateRollback(ctx, environment)
		if !result.Success {
			return &models.RollbackResult{
				Success:  false,
				Level:    models.LevelNone,
				Duration: time.Since(start),
				Reason:   fmt.Sprintf("Failed to rollback %s: %s", environment, result.Reason),
			}
		}
	}

	return &models.RollbackResult{
		Success:  true,
		Level:    models.LevelFull,
		Duration: time.Since(start),
	}
}

// ValidateRollback waits the stabilization interval, then judges the
// environment's health. It is used standalone and as the tail of both
// rollback paths.
func (e *Engine) ValidateRollback(ctx context.Context, environment models.Environment) *models.RollbackResult {
	start := time.Now()

	e.logger.Info().
		Str("environment", string(environment)).
		Dur("stabilization", e.stabilization).
		Msg("Waiting for deployment to stabilize before validation")

	e.sleeper.Sleep(e.stabilization)

	check, err := e.health.Check(ctx, environment)
	if err != nil {
		return &models.RollbackResult{
			Success:  false,
			Level:    models.LevelNone,
			Duration: time.Since(start),
			Reason:   fmt.Sprintf("unexpected error: %v", err),
		}
	}

	if !check.Success {
		return &models.RollbackResult{
			Success:  false,
			Level:    models.LevelNone,
			Duration: time.Since(start),
			Reason:   check.Reason,
		}
	}

	return &models.RollbackResult{
		Success:  true,
		Level:    models.LevelStage,
		Duration: time.Since(start),
	}
}

// failedResult folds a collaborator error into a failed RollbackResult
func (e *Engine) failedResult(start time.Time, environment models.Environment, step string, err error) *models.RollbackResult {
	e.logger.Error().
		Err(err).
		Str("environment", string(environment)).
		Str("step", step).
		Msg("Rollback step failed")

	return &models.RollbackResult{
		Success:  false,
		Level:    models.LevelNone,
		Duration: time.Since(start),
		Reason:   reasonFromError(err),
	}
}

// reasonFromError keeps expected failures discriminable from unexpected ones
func reasonFromError(err error) string {
	if errors.Is(err, artifact.ErrArtifactsNotFound) {
		return err.Error()
	}
	return fmt.Sprintf("unexpected error: %v", err)
}

// notifyFields builds the notification context for a deployment
func (e *Engine) notifyFields(deployment *models.Deployment) map[string]string {
	return map[string]string{
		"deployment_id":         deployment.DeploymentID,
		"environment":           string(deployment.Environment),
		"version":               deployment.Version,
		"previous_version":      deployment.PreviousVersion,
		"pipeline_execution_id": deployment.PipelineExecutionID,
	}
}
