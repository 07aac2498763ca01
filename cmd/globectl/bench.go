package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"

	"tileglobe/internal/provider"
	"tileglobe/internal/selector"
)

func newBenchCmd(e *env) *cobra.Command {
	var iterations int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time Select on a warm cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations <= 0 {
				return fmt.Errorf("iterations must be positive")
			}
			tiles, sel, frame := e.setup(provider.Placeholder{})
			defer tiles.Close()

			res, _, err := selector.Run(cmd.Context(), sel, tiles, frame, 0)
			if err != nil {
				return err
			}

			samples := make(stats.Float64Data, 0, iterations)
			out := res.Tiles
			for i := 0; i < iterations; i++ {
				start := time.Now()
				res = sel.Select(frame, out)
				samples = append(samples, float64(time.Since(start).Microseconds()))
				out = res.Tiles
			}

			mean, _ := stats.Mean(samples)
			p50, _ := stats.Percentile(samples, 50)
			p90, _ := stats.Percentile(samples, 90)
			p99, _ := stats.Percentile(samples, 99)
			worst, _ := samples.Max()

			fmt.Fprintf(cmd.OutOrStdout(), "%s selections of %d tiles (%d visited)\n",
				humanize.Comma(int64(iterations)), len(res.Tiles), res.Stats.Visited)
			fmt.Fprintf(cmd.OutOrStdout(), "mean %.0fµs  p50 %.0fµs  p90 %.0fµs  p99 %.0fµs  max %.0fµs\n",
				mean, p50, p90, p99, worst)
			return nil
		},
	}
	cmd.Flags().IntVar(&iterations, "iterations", 1000, "number of timed selections")
	return cmd
}
