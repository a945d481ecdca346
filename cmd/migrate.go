package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"namiokai/config"
	"namiokai/db/pg"
	_ "namiokai/migration" // registers the Go migrations
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "migrate db in web server",
		Long:  `This command migrates the postgres schema used by the web server with goose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			up, _ := cmd.Flags().GetBool("up")
			down, _ := cmd.Flags().GetBool("down")
			if down {
				up = false
			}

			if err := goose.SetDialect("postgres"); err != nil {
				return fmt.Errorf("failed to set goose dialect: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := sql.Open("postgres", pg.CreateDSN(cfg.DatabaseURL))
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			ctx := context.Background()
			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			defer pingCancel()
			if err := db.PingContext(pingCtx); err != nil {
				return fmt.Errorf("failed to ping database: %w", err)
			}
			slog.Info("connected to the database")

			// the DSN's search_path points here, so it must exist before goose
			// creates its version table
			if _, err := db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+config.AppName); err != nil {
				return fmt.Errorf("failed to create schema %s: %w", config.AppName, err)
			}

			migrationsDir := "migration"
			switch {
			case up:
				slog.Info("running up migrations")
				if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
					return fmt.Errorf("goose up: %w", err)
				}
			case down:
				slog.Info("rolling back the last migration")
				if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
					return fmt.Errorf("goose down: %w", err)
				}
			}
			return goose.StatusContext(ctx, db, migrationsDir)
		},
	}

	cmd.Flags().BoolP("up", "u", true, "up the version of db")
	cmd.Flags().BoolP("down", "d", false, "down the version of db")

	return cmd
}
