package main

import (
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-compressor/internal/catalog"
	"github.com/tendant/simple-compressor/internal/plan"
)

func newPlanCommand(opts *options) *cobra.Command {
	var (
		collection string
		percentage float64
		strategy   string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the target size each image of a collection would get",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if percentage < 1 || percentage > 100 {
				return fmt.Errorf("--percentage must be between 1 and 100 (got %v)", percentage)
			}
			s, err := plan.ParseStrategy(strategy)
			if err != nil {
				return err
			}

			store, closeStore, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			col, err := catalog.Load(cmd.Context(), store, collection)
			if err != nil {
				return fmt.Errorf("load collection %s: %w", collection, err)
			}

			layout := opts.layout()
			sources := make([]plan.Source, len(col.Images))
			for i, im := range col.Images {
				sources[i] = plan.Source{ImageID: im.ID, Path: layout.SourcePath(col.ID, im.Filename)}
			}
			inputs, err := plan.Measure(sources, nil)
			if err != nil {
				return err
			}
			targets := plan.Compute(inputs, int(math.Round(percentage)), s)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILENAME\tORIGINAL\tTARGET")
			for _, im := range col.Images {
				e := targets[im.ID]
				if e.Missing() {
					fmt.Fprintf(tw, "%s\t%s\t-\tmissing\n", im.ID, im.Filename)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", im.ID, im.Filename, e.Original, e.Target)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "Collection ID to plan")
	cmd.Flags().Float64Var(&percentage, "percentage", 50, "Target size as a percentage of the original (1-100)")
	cmd.Flags().StringVar(&strategy, "strategy", "best", "Target aggregation strategy (best or worst)")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}
