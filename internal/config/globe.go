package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment prefix for globectl options, GLOBE_ALT etc.
const EnvPrefix = "GLOBE"

// GlobeOptions drives headless selection from globectl.
type GlobeOptions struct {
	Lon      float64 `mapstructure:"lon"`
	Lat      float64 `mapstructure:"lat"`
	Altitude float64 `mapstructure:"alt"`
	Tilt     float64 `mapstructure:"tilt"`
	FOV      float64 `mapstructure:"fov"` // degrees

	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`

	// BaseURL is the tile proxy. Empty selects the offline debug provider.
	BaseURL string `mapstructure:"base-url"`
	Source  string `mapstructure:"source"`

	MaxZoom  int  `mapstructure:"max-zoom"`
	MinZoom  int  `mapstructure:"min-zoom"`
	Backface bool `mapstructure:"backface"`
	Workers  int  `mapstructure:"workers"`
	Frames   int  `mapstructure:"frames"`

	LogLevel string `mapstructure:"log-level"`
}

func DefaultGlobeOptions() GlobeOptions {
	return GlobeOptions{
		Altitude: 3,
		FOV:      45,
		Width:    1280,
		Height:   720,
		Source:   "osm",
		MaxZoom:  18,
		MinZoom:  2,
		Workers:  4,
		Frames:   20,
		LogLevel: "warn",
	}
}

// BindGlobeFlags registers every option on fs with its default.
func BindGlobeFlags(fs *pflag.FlagSet) {
	d := DefaultGlobeOptions()
	fs.Float64("lon", d.Lon, "camera longitude in degrees")
	fs.Float64("lat", d.Lat, "camera latitude in degrees")
	fs.Float64("alt", d.Altitude, "camera distance from the globe centre in globe radii")
	fs.Float64("tilt", d.Tilt, "camera tilt in degrees")
	fs.Float64("fov", d.FOV, "vertical field of view in degrees")
	fs.Int("width", d.Width, "viewport width in pixels")
	fs.Int("height", d.Height, "viewport height in pixels")
	fs.String("base-url", d.BaseURL, "tile proxy base URL, empty for synthetic tiles")
	fs.String("source", d.Source, "tile source name on the proxy")
	fs.Int("max-zoom", d.MaxZoom, "deepest zoom level to select")
	fs.Int("min-zoom", d.MinZoom, "levels refined regardless of screen size")
	fs.Bool("backface", d.Backface, "skip tiles facing away from the camera")
	fs.Int("workers", d.Workers, "concurrent tile fetches")
	fs.Int("frames", d.Frames, "maximum frames to run while textures load")
	fs.String("log-level", d.LogLevel, "debug, info, warn or error")
}

// NewGlobeViper returns a viper instance reading GLOBE_* environment
// variables, with flags taking precedence when fs is not nil.
func NewGlobeViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := DefaultGlobeOptions()
	for key, value := range map[string]any{
		"lon": d.Lon, "lat": d.Lat, "alt": d.Altitude, "tilt": d.Tilt, "fov": d.FOV,
		"width": d.Width, "height": d.Height,
		"base-url": d.BaseURL, "source": d.Source,
		"max-zoom": d.MaxZoom, "min-zoom": d.MinZoom, "backface": d.Backface,
		"workers": d.Workers, "frames": d.Frames, "log-level": d.LogLevel,
	} {
		v.SetDefault(key, value)
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func LoadGlobeOptions(v *viper.Viper) GlobeOptions {
	return GlobeOptions{
		Lon:      v.GetFloat64("lon"),
		Lat:      v.GetFloat64("lat"),
		Altitude: v.GetFloat64("alt"),
		Tilt:     v.GetFloat64("tilt"),
		FOV:      v.GetFloat64("fov"),
		Width:    v.GetInt("width"),
		Height:   v.GetInt("height"),
		BaseURL:  v.GetString("base-url"),
		Source:   v.GetString("source"),
		MaxZoom:  v.GetInt("max-zoom"),
		MinZoom:  v.GetInt("min-zoom"),
		Backface: v.GetBool("backface"),
		Workers:  v.GetInt("workers"),
		Frames:   v.GetInt("frames"),
		LogLevel: v.GetString("log-level"),
	}
}
