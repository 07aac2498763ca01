package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tileglobe/internal/projection"
	"tileglobe/internal/selector"
	"tileglobe/internal/tile_cache"
)

type selection struct {
	Tiles     []projection.Address `json:"tiles"`
	Fallbacks []projection.Address `json:"fallbacks"`
	Satisfied bool                 `json:"satisfied"`
	Frames    int                  `json:"frames"`
	Stats     selector.Stats       `json:"stats"`
	Cache     tile_cache.Stats     `json:"cache"`
}

func addresses(records []*tile_cache.Record) []projection.Address {
	out := make([]projection.Address, len(records))
	for i, rec := range records {
		out[i] = rec.Address
	}
	return out
}

func newSelectCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Print the tiles drawn from the configured camera once textures settle",
		RunE: func(cmd *cobra.Command, args []string) error {
			tiles, sel, frame := e.setup(e.provider())
			defer tiles.Close()

			res, frames, err := selector.Run(cmd.Context(), sel, tiles, frame, e.opts.Frames)
			if err != nil {
				return err
			}
			e.log.Debug("Selection finished", zap.Int("frames", frames), zap.Int("tiles", len(res.Tiles)))

			out := selection{
				Tiles:     addresses(res.Tiles),
				Fallbacks: addresses(res.Fallbacks),
				Satisfied: res.Satisfied,
				Frames:    frames,
				Stats:     res.Stats,
				Cache:     tiles.Stats(),
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return printSelection(cmd, out)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printSelection(cmd *cobra.Command, s selection) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TILE\tNORTH\tSOUTH\tWEST\tEAST")
	for _, addr := range s.Tiles {
		b := addr.Bounds()
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\n", addr, b.North, b.South, b.West, b.East)
	}
	for _, addr := range s.Fallbacks {
		fmt.Fprintf(w, "%s (fallback)\t\t\t\t\n", addr)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	textureBytes := uint64(s.Cache.Ready) * 256 * 256 * 4
	fmt.Fprintf(cmd.OutOrStdout(),
		"\n%d tiles, satisfied=%v after %d frames; visited %d, refined %d, culled %d, max depth %d\n",
		len(s.Tiles), s.Satisfied, s.Frames, s.Stats.Visited, s.Stats.Refined, s.Stats.Culled, s.Stats.MaxDepth)
	fmt.Fprintf(cmd.OutOrStdout(), "%d records, %d failed, %s of textures\n",
		s.Cache.Records, s.Cache.Failed, humanize.IBytes(textureBytes))
	return nil
}
