package main

import (
	"fmt"
	"image/color"
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls the viewer window and the synthetic drawing generated
// at startup. Values come from an optional YAML file (-config flag);
// DRAFTVIEW_SEED overrides the drawing seed.
type Config struct {
	Window struct {
		Width  int    `yaml:"width"`
		Height int    `yaml:"height"`
		Title  string `yaml:"title"`
	} `yaml:"window"`

	Background RGBA `yaml:"background"`

	Drawing struct {
		Seed       int64 `yaml:"seed"`
		Layers     int   `yaml:"layers"`
		Polylines  int   `yaml:"polylines"`
		Hatches    int   `yaml:"hatches"`
		Points     int   `yaml:"points"`
		WideLines  int   `yaml:"wide_lines"`
		Dimensions int   `yaml:"dimensions"`
	} `yaml:"drawing"`
}

// RGBA unmarshals "#rrggbb" or "#rrggbbaa" hex strings.
type RGBA struct {
	color.RGBA
}

func (c *RGBA) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if len(s) == 0 || s[0] != '#' {
		return fmt.Errorf("color %q: expected #rrggbb or #rrggbbaa", s)
	}
	var r, g, b, a uint8 = 0, 0, 0, 255
	switch len(s) {
	case 7:
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
			return fmt.Errorf("color %q: %w", s, err)
		}
	case 9:
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x%02x", &r, &g, &b, &a); err != nil {
			return fmt.Errorf("color %q: %w", s, err)
		}
	default:
		return fmt.Errorf("color %q: expected #rrggbb or #rrggbbaa", s)
	}
	c.RGBA = color.RGBA{R: r, G: g, B: b, A: a}
	return nil
}

func defaultConfig() Config {
	var cfg Config
	cfg.Window.Width = 1280
	cfg.Window.Height = 960
	cfg.Window.Title = "Draftview"
	cfg.Background = RGBA{color.RGBA{R: 24, G: 24, B: 28, A: 255}}
	cfg.Drawing.Layers = 4
	cfg.Drawing.Polylines = 200
	cfg.Drawing.Hatches = 40
	cfg.Drawing.Points = 120
	cfg.Drawing.WideLines = 30
	cfg.Drawing.Dimensions = 20
	return cfg
}

// loadConfig reads the YAML file at path into the defaults. An empty
// path returns the defaults unchanged.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
