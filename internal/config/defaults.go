package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	PresetClassic = "classic"
	PresetShort   = "short"

	ZoomModeFixed       = "fixed"
	ZoomModeAlternating = "alternating"
)

// Default возвращает конфигурацию исходной программы: интро 16с,
// окна 45/5/10с, зум 50%, водяной знак снизу по центру, H.264/AAC 24 FPS.
func Default() *Config {
	return &Config{
		Rules: PresetRules(PresetClassic),
		Output: Output{
			Codec:          "libx264",
			AudioCodec:     "aac",
			FPS:            24,
			Quality:        23,
			SegmentEncoder: "libx264",
		},
		Watermark: Watermark{
			Text:     "VIDHUB_AFRO",
			Opacity:  0.5,
			FontSize: 40,
		},
		Workers: runtime.NumCPU(),
	}
}

// PresetRules возвращает один из двух известных вариантов ритма.
// Неизвестное имя дает classic.
func PresetRules(name string) Ruleset {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PresetShort:
		return Ruleset{
			Preset:       PresetShort,
			IntroSeconds: 5,
			PlaySeconds:  15,
			ZoomSeconds:  5,
			SkipSeconds:  3,
			Zoom:         ZoomPolicy{Mode: ZoomModeAlternating, Percent: 30, AltPercent: 50},
		}
	default:
		return Ruleset{
			Preset:       PresetClassic,
			IntroSeconds: 16,
			PlaySeconds:  45,
			ZoomSeconds:  5,
			SkipSeconds:  10,
			Zoom:         ZoomPolicy{Mode: ZoomModeFixed, Percent: 50},
		}
	}
}

// IsPreset сообщает, известно ли имя пресета.
func IsPreset(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PresetClassic, PresetShort:
		return true
	}
	return false
}

// NormalizeOutputPath дописывает .mp4, если у пути нет расширения.
func NormalizeOutputPath(path string) string {
	if path == "" {
		return path
	}
	if filepath.Ext(path) == "" {
		return path + ".mp4"
	}
	return path
}

func (r Ruleset) String() string {
	zoom := fmt.Sprintf("%d%%", r.Zoom.Percent)
	if r.Zoom.Mode == ZoomModeAlternating {
		zoom = fmt.Sprintf("%d%%/%d%%", r.Zoom.Percent, r.Zoom.AltPercent)
	}
	return fmt.Sprintf("intro=%gs play=%gs zoom=%gs@%s skip=%gs",
		r.IntroSeconds, r.PlaySeconds, r.ZoomSeconds, zoom, r.SkipSeconds)
}
