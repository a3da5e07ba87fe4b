package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmarinho/rollback-engine/internal/history"
	"github.com/dmarinho/rollback-engine/pkg/config"
	"github.com/dmarinho/rollback-engine/pkg/database"
	"github.com/dmarinho/rollback-engine/pkg/models"
)

var historyFlags struct {
	environment string
	limit       int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent deployment records for an environment",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyFlags.environment, "environment", "", "environment to list (test|staging|production)")
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 10, "maximum number of records")
	historyCmd.MarkFlagRequired("environment")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	environment, err := models.ParseEnvironment(historyFlags.environment)
	if err != nil {
		return err
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
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	repo := history.NewRepository(db)
	records, err := repo.ListRecent(context.Background(), environment, historyFlags.limit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		cmd.Printf("No deployment records for %s\n", environment)
		return nil
	}

	for _, r := range records {
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format("2006-01-02 15:04:05")
		}
		cmd.Printf("%-30s %-12s %-12s %s\n", r.DeploymentID, r.Version, r.Status, completed)
	}
	return nil
}
