package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dalemusser/sitecrew/internal/app/store/sendlogs"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	sendLogsDate  string
	sendLogsLimit int64
)

var sendLogsCmd = &cobra.Command{
	Use:   "send-logs",
	Short: "Print recent send log entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sendLogsDate != "" {
			if err := dayscope.ValidateDate(sendLogsDate); err != nil {
				return fmt.Errorf("--date %q: %w", sendLogsDate, err)
			}
		}
		return withDB(cmd.Context(), func(ctx context.Context, db *mongo.Database) error {
			return runSendLogs(ctx, sendlogs.New(db), sendLogsDate, sendLogsLimit, cmd.OutOrStdout())
		})
	},
}

func init() {
	sendLogsCmd.Flags().StringVar(&sendLogsDate, "date", "", "only entries for this day (YYYY-MM-DD)")
	sendLogsCmd.Flags().Int64Var(&sendLogsLimit, "limit", 20, "maximum entries to print")
}

func runSendLogs(ctx context.Context, store *sendlogs.Store, date string, limit int64, out io.Writer) error {
	entries, err := store.List(ctx, sendlogs.QueryFilter{Date: date, Limit: limit})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no send log entries")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tDATE\tKIND\tTOTAL\tSENT\tERRORS\tWORKER")
	for _, e := range entries {
		worker := "-"
		if e.WorkerID != nil {
			worker = e.WorkerID.Hex()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.Date, e.Kind,
			e.TotalRecipients, e.SuccessCount, e.ErrorCount, worker)
	}
	return tw.Flush()
}
