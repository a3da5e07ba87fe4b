package infra

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dmarinho/rollback-engine/pkg/models"
)

// Reverter restores an environment's infrastructure to a prior definition.
// It is invoked only when the failed deployment changed infrastructure.
type Reverter interface {
	Revert(ctx context.Context, environment models.Environment, version string) error
}

// NoopReverter is used when infrastructure is managed out of band
type NoopReverter struct {
	logger zerolog.Logger
}

// NewNoopReverter creates a pass-through reverter
func NewNoopReverter(logger zerolog.Logger) *NoopReverter {
	return &NoopReverter{logger: logger.With().Str("component", "infra").Logger()}
}

// Revert logs and succeeds without touching infrastructure
func (r *NoopReverter) Revert(ctx context.Context, environment models.Environment, version string) error {
	r.logger.Info().
		Str("environment", string(environment)).
		Str("version", version).
		Msg("Infrastructure revert skipped (managed out of band)")
	return nil
}
