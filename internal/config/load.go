package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load читает YAML или TOML (по расширению) поверх Default().
// Если в файле указан rules.preset, значения пресета служат базой
// для остальных полей rules.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	unmarshal, err := decoderFor(path)
	if err != nil {
		return nil, err
	}

	var head struct {
		Rules struct {
			Preset string `yaml:"preset" toml:"preset"`
		} `yaml:"rules" toml:"rules"`
	}
	if err := unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := Default()
	if head.Rules.Preset != "" {
		if !IsPreset(head.Rules.Preset) {
			return nil, fmt.Errorf("parse config %s: unknown preset %q", path, head.Rules.Preset)
		}
		cfg.Rules = PresetRules(head.Rules.Preset)
	}
	if err := unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.OutputVideo = NormalizeOutputPath(cfg.OutputVideo)
	return cfg, nil
}

func decoderFor(path string) (func([]byte, any) error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal, nil
	case ".toml":
		return toml.Unmarshal, nil
	default:
		return nil, fmt.Errorf("config %s: unsupported format (use .yaml or .toml)", path)
	}
}

// Validate проверяет конфигурацию целиком и возвращает все найденные ошибки.
func (c *Config) Validate() error {
	var errs []error
	if c.IntroPath == "" {
		errs = append(errs, errors.New("intro video path is required"))
	}
	if c.MainPath == "" {
		errs = append(errs, errors.New("main video path is required"))
	}
	if c.OutputVideo == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if err := c.Rules.Validate(); err != nil {
		errs = append(errs, err)
	}

	o := c.Output
	if o.FPS <= 0 {
		errs = append(errs, fmt.Errorf("encode.fps must be positive, got %d", o.FPS))
	}
	if o.Codec == "" || o.AudioCodec == "" {
		errs = append(errs, errors.New("encode.codec and encode.audio_codec are required"))
	}
	if o.Width < 0 || o.Height < 0 || (o.Width == 0) != (o.Height == 0) {
		errs = append(errs, fmt.Errorf("encode size %dx%d: set both or neither", o.Width, o.Height))
	}
	if o.Width%2 != 0 || o.Height%2 != 0 {
		errs = append(errs, fmt.Errorf("encode size %dx%d must be even", o.Width, o.Height))
	}

	w := c.Watermark
	if w.Opacity < 0 || w.Opacity > 1 {
		errs = append(errs, fmt.Errorf("watermark.opacity must be within [0,1], got %g", w.Opacity))
	}
	if w.Text != "" && w.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("watermark.font_size must be positive, got %d", w.FontSize))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	return errors.Join(errs...)
}

// Validate проверяет только правила нарезки (достаточно для планирования).
func (r Ruleset) Validate() error {
	var errs []error
	if r.PlaySeconds <= 0 {
		errs = append(errs, fmt.Errorf("rules.play_seconds must be positive, got %g", r.PlaySeconds))
	}
	if r.IntroSeconds < 0 || r.ZoomSeconds < 0 || r.SkipSeconds < 0 {
		errs = append(errs, errors.New("rules: intro, zoom and skip seconds must not be negative"))
	}
	switch r.Zoom.Mode {
	case ZoomModeFixed, "":
		if r.Zoom.Percent < 0 {
			errs = append(errs, fmt.Errorf("rules.zoom.percent must not be negative, got %d", r.Zoom.Percent))
		}
	case ZoomModeAlternating:
		if r.Zoom.Percent < 0 || r.Zoom.AltPercent < 0 {
			errs = append(errs, fmt.Errorf("rules.zoom percents must not be negative, got %d/%d", r.Zoom.Percent, r.Zoom.AltPercent))
		}
	default:
		errs = append(errs, fmt.Errorf("rules.zoom.mode: unsupported value %q", r.Zoom.Mode))
	}
	return errors.Join(errs...)
}
