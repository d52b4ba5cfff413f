package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-compressor/internal/batch"
	"github.com/tendant/simple-compressor/internal/compress"
	"github.com/tendant/simple-compressor/internal/process"
)

const pollInterval = 100 * time.Millisecond

type runFlags struct {
	collection string
	percentage float64
	strategy   string
	jobID      string
}

func newRunCommand(opts *options) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compress a collection and wait for the job to finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, f)
		},
	}

	cmd.Flags().StringVar(&f.collection, "collection", "", "Collection ID to compress")
	cmd.Flags().Float64Var(&f.percentage, "percentage", 50, "Target size as a percentage of the original (1-100)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "best", "Target aggregation strategy (best or worst)")
	cmd.Flags().StringVar(&f.jobID, "job-id", "", "Job ID (a UUID is generated when empty)")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func runBatch(cmd *cobra.Command, opts *options, f runFlags) error {
	ctx := cmd.Context()

	store, closeStore, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := batch.NewService(batch.NewRunner(batch.Deps{
		Ledger:     process.NewLedger(),
		Registry:   process.NewRegistry(),
		Store:      store,
		Layout:     opts.layout(),
		Compressor: compress.New(compress.WithLogger(opts.logger)),
		Logger:     opts.logger,
	}))

	jobID := f.jobID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	res, err := svc.Start(ctx, batch.StartRequest{
		JobID:        jobID,
		CollectionID: f.collection,
		Percentage:   f.percentage,
		Strategy:     f.strategy,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "job %s started: %d images\n", res.JobID, res.TotalImages)

	rec := waitForJob(cmd, svc, res.JobID)
	printStats(out, rec)

	switch rec.Status {
	case process.JobStatusCompleted:
		return nil
	case process.JobStatusCancelled:
		return errors.New("job cancelled")
	default:
		return fmt.Errorf("job failed: %s", rec.Error)
	}
}

// waitForJob polls until the job reaches a terminal status, stopping it once
// if the command context ends first.
func waitForJob(cmd *cobra.Command, svc *batch.Service, jobID string) process.Record {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	done := cmd.Context().Done()
	last := -1
	for {
		select {
		case <-done:
			done = nil
			_ = svc.Stop(jobID)
			fmt.Fprintln(cmd.ErrOrStderr(), "stopping...")
		case <-ticker.C:
		}

		rec, ok := svc.Progress(jobID)
		if !ok {
			continue
		}
		if rec.ProcessedImages != last {
			last = rec.ProcessedImages
			fmt.Fprintf(cmd.ErrOrStderr(), "%d/%d processed\n", rec.ProcessedImages, rec.TotalImages)
		}
		if rec.Status.Terminal() {
			return rec
		}
	}
}

func printStats(w io.Writer, rec process.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IMAGE\tORIGINAL\tTARGET\tFINAL\tRATE\tERROR")
	ids := make([]string, 0, len(rec.CompressionStats))
	for id := range rec.CompressionStats {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		s := rec.CompressionStats[id]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d%%\t%s\n", s.ImageName, s.OriginalSize, s.TargetSize, s.FinalSize, s.CompressionRate, s.Error)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "status: %s (%d/%d)\n", rec.Status, rec.ProcessedImages, rec.TotalImages)
}
