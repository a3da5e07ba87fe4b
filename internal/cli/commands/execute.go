package commands

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dmarinho/rollback-engine/internal/artifact"
	"github.com/dmarinho/rollback-engine/internal/health"
	"github.com/dmarinho/rollback-engine/internal/history"
	"github.com/dmarinho/rollback-engine/internal/infra"
	"github.com/dmarinho/rollback-engine/internal/lock"
	"github.com/dmarinho/rollback-engine/internal/notify"
	"github.com/dmarinho/rollback-engine/internal/rollback"
	"github.com/dmarinho/rollback-engine/pkg/config"
	"github.com/dmarinho/rollback-engine/pkg/database"
	"github.com/dmarinho/rollback-engine/pkg/models"
)

var executeFlags struct {
	deploymentID          string
	environment           string
	version               string
	previousVersion       string
	infrastructureChanged bool
	pipelineExecutionID   string
	reason                string
}

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Execute a rollback for a failed deployment",
	RunE:  runExecute,
}

func init() {
	executeCmd.Flags().StringVar(&executeFlags.deploymentID, "deployment-id", "", "identifier of the failed deployment")
	executeCmd.Flags().StringVar(&executeFlags.environment, "environment", "", "environment of the failed deployment (test|staging|production)")
	executeCmd.Flags().StringVar(&executeFlags.version, "version", "", "version that triggered the rollback")
	executeCmd.Flags().StringVar(&executeFlags.previousVersion, "previous-version", "", "version to restore for the stage rollback")
	executeCmd.Flags().BoolVar(&executeFlags.infrastructureChanged, "infrastructure-changed", false, "whether the deployment changed infrastructure")
	executeCmd.Flags().StringVar(&executeFlags.pipelineExecutionID, "pipeline-execution-id", "", "triggering pipeline run, for traceability")
	executeCmd.Flags().StringVar(&executeFlags.reason, "reason", "", "why the release was judged unhealthy")

	executeCmd.MarkFlagRequired("deployment-id")
	executeCmd.MarkFlagRequired("environment")
	executeCmd.MarkFlagRequired("version")
	executeCmd.MarkFlagRequired("previous-version")
	executeCmd.MarkFlagRequired("reason")
}

func runExecute(cmd *cobra.Command, args []string) error {
	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	environment, err := models.ParseEnvironment(executeFlags.environment)
	if err != nil {
		return err
	}

	deployment := &models.Deployment{
		DeploymentID:          executeFlags.deploymentID,
		Environment:           environment,
		Version:               executeFlags.version,
		PreviousVersion:       executeFlags.previousVersion,
		InfrastructureChanged: executeFlags.infrastructureChanged,
		PipelineExecutionID:   executeFlags.pipelineExecutionID,
	}

	ctx := context.Background()

	// At most one rollback per environment may be in flight; the engine
	// performs no locking itself.
	envLock, err := lock.NewRedisLock(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer envLock.Close()

	if err := envLock.Acquire(ctx, environment, cfg.Redis.LockTTL); err != nil {
		return err
	}
	defer func() {
		if err := envLock.Release(ctx, environment); err != nil {
			zlog.Error().Err(err).Msg("Failed to release rollback lock")
		}
	}()

	engine, repo, err := buildEngine(ctx, cfg, zlog)
	if err != nil {
		return err
	}

	result := engine.ExecuteRollback(ctx, deployment, executeFlags.reason)

	// The triggering deployment failed by definition; its record may be
	// absent when the pipeline never wrote one.
	if err := repo.MarkFailed(ctx, deployment.DeploymentID); err != nil {
		zlog.Warn().Err(err).Str("deployment_id", deployment.DeploymentID).
			Msg("Could not mark triggering deployment failed")
	}
	if err := repo.RecordRollbackOutcome(ctx, deployment, result); err != nil {
		zlog.Error().Err(err).Str("deployment_id", deployment.DeploymentID).
			Msg("Failed to record rollback outcome")
	}

	zlog.Info().
		Bool("success", result.Success).
		Str("level", string(result.Level)).
		Dur("duration", result.Duration).
		Str("reason", result.Reason).
		Msg("Rollback finished")

	if !result.Success {
		return fmt.Errorf("rollback failed: %s", result.Reason)
	}
	return nil
}

// buildEngine wires the production collaborators. The repository is returned
// alongside the engine so the command can record the rollback outcome.
func buildEngine(ctx context.Context, cfg *config.Config, zlog zerolog.Logger) (*rollback.Engine, *history.Repository, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	db, err := database.New(database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.HealthCheck(db); err != nil {
		return nil, nil, fmt.Errorf("database not ready: %w", err)
	}

	if err := history.AutoMigrate(db); err != nil {
		return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	store := artifact.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Artifacts.Bucket, cfg.Artifacts.Prefix, zlog)
	monitor := health.NewMonitor(cloudwatch.NewFromConfig(awsCfg), cfg.Alarms.NamePrefix, zlog)
	repo := history.NewRepository(db)
	notifier := notify.NewNotifier(notify.Config{
		WebhookURL: cfg.Notify.WebhookURL,
		Channel:    cfg.Notify.Channel,
		Username:   cfg.Notify.Username,
		Timeout:    cfg.Notify.Timeout,
	}, zlog)

	var reverter infra.Reverter
	if cfg.Infra.Enabled {
		reverter, err = infra.NewPulumiReverter(infra.Config{
			Project:       cfg.Infra.Project,
			Backend:       cfg.Infra.Backend,
			WorkDir:       cfg.Infra.WorkDir,
			RevertTimeout: cfg.Infra.RevertTimeout,
		}, zlog)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create infrastructure reverter: %w", err)
		}
	} else {
		reverter = infra.NewNoopReverter(zlog)
	}

	engine := rollback.NewEngine(store, reverter, monitor, repo, notifier, zlog)
	engine.SetStabilizationInterval(cfg.Rollback.StabilizationInterval)

	return engine, repo, nil
}
