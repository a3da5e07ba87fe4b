package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
	"github.com/rs/zerolog"

	"github.com/dmarinho/rollback-engine/pkg/models"
)

// Default timeout for infrastructure revert operations
const DefaultRevertTimeout = 20 * time.Minute

// PulumiReverter restores an environment's infrastructure by re-running its
// Pulumi stack pinned to the target version
type PulumiReverter struct {
	project       string
	backend       string
	workDir       string
	revertTimeout time.Duration
	logger        zerolog.Logger
}

// Config holds Pulumi reverter configuration
type Config struct {
	Project       string
	Backend       string // Optional: state backend URL, e.g. s3://pulumi-state
	WorkDir       string
	RevertTimeout time.Duration // Optional: defaults to 20 minutes
}

// NewPulumiReverter creates a Pulumi-backed infrastructure reverter
func NewPulumiReverter(config Config, logger zerolog.Logger) (*PulumiReverter, error) {
	if config.Project == "" {
		return nil, fmt.Errorf("pulumi project name is required")
	}
	if config.WorkDir == "" {
		return nil, fmt.Errorf("pulumi work directory is required")
	}
	if config.RevertTimeout == 0 {
		config.RevertTimeout = DefaultRevertTimeout
	}

	return &PulumiReverter{
		project:       config.Project,
		backend:       config.Backend,
		workDir:       config.WorkDir,
		revertTimeout: config.RevertTimeout,
		logger:        logger.With().Str("component", "infra").Logger(),
	}, nil
}

// stackName returns the per-environment stack name
func (r *PulumiReverter) stackName(environment models.Environment) string {
	return fmt.Sprintf("%s-%s", r.project, environment)
}

// Revert selects the environment's stack, pins the application version
// config, and runs pulumi up to converge to the prior definition
func (r *PulumiReverter) Revert(ctx context.Context, environment models.Environment, version string) error {
	ctx, cancel := context.WithTimeout(ctx, r.revertTimeout)
	defer cancel()

	stackName := r.stackName(environment)

	r.logger.Info().
		Str("stackName", stackName).
		Str("version", version).
		Dur("timeout", r.revertTimeout).
		Msg("Starting infrastructure revert")

	var opts []auto.LocalWorkspaceOption
	if r.backend != "" {
		opts = append(opts, auto.EnvVars(map[string]string{"PULUMI_BACKEND_URL": r.backend}))
	}

	stack, err := auto.SelectStackLocalSource(ctx, stackName, r.workDir, opts...)
	if err != nil {
		return fmt.Errorf("failed to select stack %s: %w", stackName, err)
	}

	if err := stack.SetConfig(ctx, "appVersion", auto.ConfigValue{Value: version}); err != nil {
		return fmt.Errorf("failed to set stack config: %w", err)
	}

	if _, err := stack.Up(ctx, optup.Message(fmt.Sprintf("rollback to %s", version))); err != nil {
		return fmt.Errorf("pulumi up failed: %w", err)
	}

	r.logger.Info().
		Str("stackName", stackName).
		Str("version", version).
		Msg("Infrastructure revert completed")

	return nil
}
