package models

import (
	"fmt"
	"strings"
	"time"
)

// Environment identifies a deployment target
type Environment string

const (
	EnvTest       Environment = "test"
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "production"
)

// ParseEnvironment validates and normalizes an environment name
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case EnvTest:
		return EnvTest, nil
	case EnvStaging:
		return EnvStaging, nil
	case EnvProduction:
		return EnvProduction, nil
	default:
		return "", fmt.Errorf("unknown environment: %q", s)
	}
}

// Deployment describes the release that triggered rollback consideration.
// It is constructed by the caller (pipeline or alarm handler) and is
// immutable for the duration of one rollback attempt.
type Deployment struct {
	DeploymentID          string      `json:"deployment_id"`
	Environment           Environment `json:"environment"`
	Version               string      `json:"version"`
	PreviousVersion       string      `json:"previous_version"`
	InfrastructureChanged bool        `json:"infrastructure_changed"`
	PipelineExecutionID   string      `json:"pipeline_execution_id"`
}

// RollbackLevel indicates which rollback mechanism completed
type RollbackLevel string

const (
	// LevelStage means the single-environment rollback succeeded
	LevelStage RollbackLevel = "stage"

	// LevelFull means the stage rollback failed and the multi-environment
	// rollback succeeded
	LevelFull RollbackLevel = "full"

	// LevelNone means no rollback mechanism completed
	LevelNone RollbackLevel = "none"
)

// RollbackResult is the orchestrator's output contract.
// Level is "none" if and only if Success is false and neither rollback
// mechanism completed.
type RollbackResult struct {
	Success  bool          `json:"success"`
	Level    RollbackLevel `json:"level"`
	Duration time.Duration `json:"duration"`
	Reason   string        `json:"reason,omitempty"`
}

// AlarmState mirrors the monitoring backend's alarm states
type AlarmState string

const (
	AlarmStateOK               AlarmState = "OK"
	AlarmStateAlarm            AlarmState = "ALARM"
	AlarmStateInsufficientData AlarmState = "INSUFFICIENT_DATA"
)

// FailedAlarm identifies a single triggered alarm
type FailedAlarm struct {
	Name  string     `json:"name"`
	State AlarmState `json:"state"`
}

// HealthCheckResult is produced per validation call. FailedAlarms is empty
// when healthy and Reason is populated only on failure.
type HealthCheckResult struct {
	Success      bool          `json:"success"`
	FailedAlarms []FailedAlarm `json:"failed_alarms,omitempty"`
	Duration     time.Duration `json:"duration"`
	Reason       string        `json:"reason,omitempty"`
}

// RecordStatus represents the lifecycle state of a deployment history record
type RecordStatus string

const (
	RecordInProgress RecordStatus = "in_progress"
	RecordSucceeded  RecordStatus = "succeeded"
	RecordFailed     RecordStatus = "failed"

	// Rollback outcomes get their own statuses so they never shadow a
	// genuine succeeded deployment in last-known-good queries.
	RecordRolledBack     RecordStatus = "rolled_back"
	RecordRollbackFailed RecordStatus = "rollback_failed"
)
