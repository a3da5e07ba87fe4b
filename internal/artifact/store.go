package artifact

import (
	"context"
	"errors"

	"github.com/dmarinho/rollback-engine/pkg/models"
)

// ErrArtifactsNotFound is returned when no artifact objects exist for the
// requested environment and version.
var ErrArtifactsNotFound = errors.New("artifacts not found")

// Store locates and restores versioned artifact sets for an environment
type Store interface {
	// Locate verifies that an artifact set exists for the given version.
	// Returns ErrArtifactsNotFound when absent.
	Locate(ctx context.Context, environment models.Environment, version string) error

	// Restore promotes the artifact set for the given version to the
	// environment's live location and returns the number of objects restored.
	Restore(ctx context.Context, environment models.Environment, version string) (int, error)
}
