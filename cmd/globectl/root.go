package main

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tileglobe/internal/config"
	"tileglobe/internal/logger"
	"tileglobe/internal/provider"
	"tileglobe/internal/screen"
	"tileglobe/internal/selector"
	"tileglobe/internal/tile_cache"
)

// env holds what every subcommand needs once flags and GLOBE_* variables
// are resolved.
type env struct {
	opts config.GlobeOptions
	log  *zap.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "globectl",
		Short:         "Drive the globe tile selector without a renderer",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewGlobeViper(cmd.Flags())
			if err != nil {
				return err
			}
			e.opts = config.LoadGlobeOptions(v)
			if e.opts.Width <= 0 || e.opts.Height <= 0 {
				return fmt.Errorf("invalid viewport %dx%d", e.opts.Width, e.opts.Height)
			}
			if e.opts.Altitude <= 1 {
				return fmt.Errorf("altitude %v is inside the globe", e.opts.Altitude)
			}
			e.log, err = logger.New(e.opts.LogLevel, "console")
			return err
		},
	}
	config.BindGlobeFlags(root.PersistentFlags())

	root.AddCommand(newSelectCmd(e), newBenchCmd(e), newTileCmd(e))
	return root
}

func (e *env) provider() tile_cache.Provider {
	if e.opts.BaseURL == "" {
		return provider.NewDebugProvider(0)
	}
	return provider.NewHTTPProvider(e.opts.BaseURL, e.opts.Source, 30*time.Second, e.log)
}

func (e *env) camera() screen.Camera {
	return screen.Camera{
		Lon:      e.opts.Lon,
		Lat:      e.opts.Lat,
		Altitude: e.opts.Altitude,
		Tilt:     e.opts.Tilt,
		FOV:      mgl64.DegToRad(e.opts.FOV),
	}
}

func (e *env) selectorOptions() selector.Options {
	opts := selector.DefaultOptions()
	opts.MaxZoom = uint32(max(e.opts.MaxZoom, 0))
	opts.MinZoom = uint32(max(e.opts.MinZoom, 0))
	opts.BackfaceCull = e.opts.Backface
	return opts
}

// setup builds a cache, a selector and the frame for the configured camera.
func (e *env) setup(p tile_cache.Provider) (*tile_cache.Cache, *selector.Selector, selector.Frame) {
	sopts := e.selectorOptions()

	copts := tile_cache.DefaultOptions()
	copts.Ellipsoid = sopts.Ellipsoid
	copts.Workers = max(e.opts.Workers, 1)
	copts.Logger = e.log
	tiles := tile_cache.New(p, copts)

	cam := e.camera()
	viewport := screen.NewViewport(0, 0, float64(e.opts.Width), float64(e.opts.Height))
	eye := cam.Eye()
	frame := selector.Frame{
		Matrix:   cam.Matrix(viewport, sopts.Ellipsoid),
		Viewport: viewport,
		Eye:      &eye,
	}
	return tiles, selector.New(tiles, sopts), frame
}
