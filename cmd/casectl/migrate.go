package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"casereview/internal/platform/config"
	"casereview/internal/platform/database"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending schema migrations",
		Flags: []cli.Flag{
			databaseURLFlag(),
			&cli.BoolFlag{Name: "status", Usage: "print the applied version without migrating"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			pool, err := database.Open(ctx, config.DatabaseConfig{URL: c.String("database-url"), MaxOpenConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			if !c.Bool("status") {
				if err := database.Migrate(ctx, pool.DB()); err != nil {
					return err
				}
			}
			version, err := database.MigrationVersion(ctx, pool.DB())
			if err != nil {
				return err
			}
			latest, err := database.LatestVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "schema version %d of %d\n", version, latest)
			return nil
		},
	}
}
