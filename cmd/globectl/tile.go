package main

import (
	"fmt"
	"image/png"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tileglobe/internal/mesh"
	"tileglobe/internal/projection"
	"tileglobe/internal/provider"
)

func newTileCmd(e *env) *cobra.Command {
	var outPath string
	var resolution int
	cmd := &cobra.Command{
		Use:   "tile z/x/y",
		Short: "Describe one tile and optionally save its image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := projection.ParseAddress(args[0])
			if err != nil {
				return err
			}

			b := addr.Bounds()
			m := mesh.Build(addr, e.selectorOptions().Ellipsoid, resolution)
			meshBytes := uint64(len(m.Positions)+len(m.Normals)+len(m.UVs))*4 + uint64(len(m.Indices))*2

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "tile    %s\n", addr)
			fmt.Fprintf(w, "bounds  N %.6f S %.6f W %.6f E %.6f\n", b.North, b.South, b.West, b.East)
			fmt.Fprintf(w, "parent  %s\n", addr.Parent())
			fmt.Fprintf(w, "mesh    %d vertices, %d triangles, %s\n", m.VertexCount(), len(m.Indices)/3, humanize.IBytes(meshBytes))

			if outPath == "" {
				return nil
			}
			img, err := e.provider().Fetch(cmd.Context(), addr)
			if err != nil {
				return err
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := png.Encode(f, provider.ToRGBA(img, provider.TileSize)); err != nil {
				return fmt.Errorf("failed to encode %s: %w", outPath, err)
			}
			fmt.Fprintf(w, "image   %s\n", outPath)
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the tile image as PNG")
	cmd.Flags().IntVar(&resolution, "resolution", mesh.DefaultResolution, "mesh cells per tile edge")
	return cmd
}
