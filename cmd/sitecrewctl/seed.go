package main

import (
	"context"
	"fmt"
	"io"
	"os"

	sitestore "github.com/dalemusser/sitecrew/internal/app/store/sites"
	workerstore "github.com/dalemusser/sitecrew/internal/app/store/workers"
	"github.com/dalemusser/sitecrew/internal/app/system/seed"
	"github.com/dalemusser/sitecrew/internal/app/system/txn"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace a day's sites and roster from a YAML file",
	Long: `seed reads a day file (date, timezone, roster, sites) and replaces
everything stored for that date. Restart or POST /days/{date}/reload on a
running server to pick up the change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedFile == "" {
			return fmt.Errorf("--file is required")
		}
		f, err := os.Open(seedFile)
		if err != nil {
			return err
		}
		defer f.Close()

		return withDB(cmd.Context(), func(ctx context.Context, db *mongo.Database) error {
			return runSeed(ctx, db, f, cmd.OutOrStdout(), logger)
		})
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "day YAML file")
}

func runSeed(ctx context.Context, db *mongo.Database, r io.Reader, out io.Writer, log *zap.Logger) error {
	day, err := seed.Parse(r)
	if err != nil {
		return err
	}
	runTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return txn.Run(ctx, db, log, fn)
	}
	res, err := seed.Apply(ctx, day, workerstore.New(db), sitestore.New(db), runTx)
	if err != nil {
		return err
	}
	log.Info("day seeded",
		zap.String("date", res.Date),
		zap.Int("workers", res.Workers),
		zap.Int("sites", res.Sites))
	fmt.Fprintf(out, "seeded %s: %d workers, %d sites\n", res.Date, res.Workers, res.Sites)
	return nil
}
