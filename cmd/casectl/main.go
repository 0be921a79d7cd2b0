// Command casectl is the operator CLI for the case review service: schema
// migrations, offline compliance evaluation and audit chain checks.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	_ = godotenv.Load()

	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}
	if err := newApp(os.Stdout).Run(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "casectl",
		Usage:  "operate the case review service",
		Writer: w,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("CASEREVIEW_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			evaluateCommand(),
			auditCommand(),
		},
	}
}

func databaseURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "database-url",
		Usage:    "Postgres connection URL",
		Required: true,
		Sources:  cli.EnvVars("CASEREVIEW_DATABASE_URL"),
	}
}
