package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-compressor/internal/bus"
)

func newWatchCommand() *cobra.Command {
	var (
		natsURL string
		subject string
	)

	cmd := &cobra.Command{
		Use:   "watch [job-id]",
		Short: "Follow progress events published by the server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := "*"
			if len(args) == 1 {
				jobID = args[0]
			}

			nc, err := bus.Connect(natsURL, subject)
			if err != nil {
				return fmt.Errorf("connect to NATS %s: %w", natsURL, err)
			}
			defer nc.Close()

			out := cmd.OutOrStdout()
			sub, err := nc.WatchProgress(jobID, func(evt bus.ProgressEvent) {
				p := evt.Progress
				fmt.Fprintf(out, "%s %s %d/%d %s\n", evt.JobID, p.Status, p.ProcessedImages, p.TotalImages, p.CurrentImage)
			})
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", bus.ProgressSubject(subject, jobID), err)
			}
			defer func() { _ = sub.Unsubscribe() }()

			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats-url", getenv("NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL")
	cmd.Flags().StringVar(&subject, "subject", getenv("PROGRESS_SUBJECT", "thumbnails.compress.progress"), "Progress subject prefix")
	return cmd
}
