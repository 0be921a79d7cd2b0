package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"casereview/internal/compliance"
	"casereview/pkg/domain"
)

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "classify an equity breakdown read from a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "JSON array of stakes, or - for stdin",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "required",
				Value:   "51",
				Usage:   "required local percentage",
				Sources: cli.EnvVars("CASEREVIEW_REQUIRED_LOCAL_PERCENTAGE"),
			},
			&cli.StringFlag{
				Name:    "jurisdiction",
				Value:   compliance.DefaultLocalJurisdiction,
				Usage:   "nationality treated as local",
				Sources: cli.EnvVars("CASEREVIEW_LOCAL_JURISDICTION"),
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			stakes, err := readStakes(c.String("file"))
			if err != nil {
				return err
			}
			required, err := domain.ParseDecimal(c.String("required"))
			if err != nil {
				return err
			}

			evaluator := compliance.New(compliance.WithLocalJurisdiction(c.String("jurisdiction")))
			result, err := evaluator.Evaluate(stakes, required)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.Root().Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func readStakes(path string) ([]domain.EquityStake, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open stakes: %w", err)
		}
		defer f.Close()
		r = f
	}
	var stakes []domain.EquityStake
	if err := json.NewDecoder(r).Decode(&stakes); err != nil {
		return nil, fmt.Errorf("decode stakes: %w", err)
	}
	return stakes, nil
}
