package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"casereview/internal/audit"
	auditstore "casereview/internal/audit/store"
	"casereview/internal/platform/config"
	"casereview/internal/platform/database"
	"casereview/internal/platform/kafka/consumer"
	"casereview/internal/platform/logger"
	auditconsumer "casereview/pkg/platform/audit/consumer"
)

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "inspect the audit trail",
		Commands: []*cli.Command{
			auditVerifyCommand(),
			auditTailCommand(),
		},
	}
}

func auditVerifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "re-walk stored hash chains and report breaks",
		Flags: []cli.Flag{
			databaseURLFlag(),
			&cli.StringFlag{Name: "entity-type", Usage: "limit to one entity type, e.g. case"},
			&cli.StringFlag{Name: "entity-id", Usage: "limit to one entity"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			pool, err := database.Open(ctx, config.DatabaseConfig{URL: c.String("database-url"), MaxOpenConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			log := logger.New(c.Root().String("log-level"))
			recorder := audit.NewRecorder(auditstore.NewPostgres(pool.DB()), audit.WithLogger(log))
			breaks, err := recorder.Verify(ctx, audit.Filter{
				EntityType: audit.EntityType(c.String("entity-type")),
				EntityID:   c.String("entity-id"),
			})
			if err != nil {
				return err
			}

			w := c.Root().Writer
			for _, b := range breaks {
				fmt.Fprintf(w, "BROKEN %s/%s at sequence %d (fact %s)\n", b.EntityType, b.EntityID, b.Sequence, b.FactID)
			}
			if len(breaks) > 0 {
				return fmt.Errorf("%d audit chain(s) broken", len(breaks))
			}
			fmt.Fprintln(w, "audit chains intact")
			return nil
		},
	}
}

// tailLine is one printed observation.
type tailLine struct {
	Verdict    auditconsumer.Verdict `json:"verdict"`
	Partition  int32                 `json:"partition"`
	Offset     int64                 `json:"offset"`
	EntityType audit.EntityType      `json:"entityType,omitempty"`
	EntityID   string                `json:"entityId,omitempty"`
	Action     string                `json:"action,omitempty"`
	Sequence   int64                 `json:"sequence,omitempty"`
	Hash       string                `json:"hash,omitempty"`
}

func auditTailCommand() *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "follow relayed audit facts and check each chain as it arrives",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "brokers",
				Usage:    "comma separated Kafka brokers",
				Required: true,
				Sources:  cli.EnvVars("CASEREVIEW_KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "topic",
				Value:   "casereview.audit.facts",
				Sources: cli.EnvVars("CASEREVIEW_KAFKA_TOPIC"),
			},
			&cli.StringFlag{Name: "group", Value: "casectl-tail", Usage: "consumer group"},
			&cli.BoolFlag{Name: "from-start", Usage: "read from the oldest record when the group has no offsets"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logger.New(c.Root().String("log-level"))
			enc := json.NewEncoder(c.Root().Writer)
			sink := func(_ context.Context, obs auditconsumer.Observation) error {
				return enc.Encode(tailLine{
					Verdict:    obs.Verdict,
					Partition:  obs.Partition,
					Offset:     obs.Offset,
					EntityType: obs.Fact.EntityType,
					EntityID:   obs.Fact.EntityID,
					Action:     obs.Fact.Action,
					Sequence:   obs.Fact.Sequence,
					Hash:       obs.Fact.Hash,
				})
			}

			cons, err := consumer.New(consumer.Config{
				Brokers:   c.String("brokers"),
				GroupID:   c.String("group"),
				Topics:    []string{c.String("topic")},
				FromStart: c.Bool("from-start"),
			}, auditconsumer.NewHandler(sink, log), log)
			if err != nil {
				return err
			}
			defer cons.Close()

			if err := cons.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
