package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/zoomcut/internal/config"
	"github.com/ivlev/zoomcut/internal/director"
	"github.com/ivlev/zoomcut/internal/source"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPlanCommandShortPreset(t *testing.T) {
	out, err := execute(t, "plan", "--duration", "38", "--preset", "short", "--intro-duration", "30")
	require.NoError(t, err)

	assert.Contains(t, out, "intro=5s play=15s zoom=5s@30%/50% skip=3s")
	assert.Contains(t, out, "zoom")
	assert.Contains(t, out, "30%")
	assert.Contains(t, out, "23.00")
	assert.Contains(t, out, "сегментов: 4 (play 2, zoom 1, skip 1)")
	// 5 интро + 15 + 5 + 15
	assert.Contains(t, out, "Длительность результата: 40.00s")
}

func TestPlanCommandWritesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	_, err := execute(t, "plan", "--duration", "17", "--play", "15", "--zoom", "5", "--skip", "3", "--out", path)
	require.NoError(t, err)

	plan, err := director.ReadPlan(path)
	require.NoError(t, err)
	require.Len(t, plan.Entries, 2)
	assert.Equal(t, director.KindZoom, plan.Entries[1].Kind)
	assert.Equal(t, 17.0, plan.Entries[1].End)
}

func TestPlanCommandNeedsInput(t *testing.T) {
	_, err := execute(t, "plan")
	assert.ErrorContains(t, err, "--duration")
}

func TestPlanCommandRejectsBadRules(t *testing.T) {
	_, err := execute(t, "plan", "--duration", "10", "--play", "0")
	assert.ErrorContains(t, err, "play_seconds")

	_, err = execute(t, "plan", "--duration", "10", "--preset", "epic")
	assert.ErrorContains(t, err, "epic")
}

func TestPlanCommandUsesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte("[rules]\npreset = \"short\"\nskip_seconds = 0\n"), 0644))

	out, err := execute(t, "plan", "-c", path, "--duration", "60")
	require.NoError(t, err)
	assert.Contains(t, out, "skip=0s")
	assert.Contains(t, out, "skip 0")
}

func TestRuleFlagsApply(t *testing.T) {
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	var f ruleFlags
	f.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--preset", "short", "--zoom-percent", "40", "--seed", "9"}))

	rules := config.PresetRules(config.PresetClassic)
	rules.Seed = 3
	require.NoError(t, f.apply(cmd, &rules))

	assert.Equal(t, config.PresetShort, rules.Preset)
	assert.Equal(t, 15.0, rules.PlaySeconds)
	assert.Equal(t, 40, rules.Zoom.Percent)
	assert.Equal(t, 50, rules.Zoom.AltPercent)
	assert.Equal(t, int64(9), rules.Seed)
}

func TestRuleFlagsAltPercentSwitchesMode(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	var f ruleFlags
	f.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--alt-zoom-percent", "70"}))

	rules := config.PresetRules(config.PresetClassic)
	require.NoError(t, f.apply(cmd, &rules))
	assert.Equal(t, config.ZoomModeAlternating, rules.Zoom.Mode)
	assert.Equal(t, 70, rules.Zoom.AltPercent)
	assert.Equal(t, 45.0, rules.PlaySeconds, "untouched flags keep file values")
}

func TestOutputFlagsApply(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	var f outputFlags
	f.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--intro", "a.mp4", "--main", "b.mp4", "-o", "result",
		"--fps", "30", "--watermark", "", "--qr", "https://example.com", "--keep-temp",
	}))

	cfg := config.Default()
	f.apply(cmd, cfg)

	assert.Equal(t, "a.mp4", cfg.IntroPath)
	assert.Equal(t, "b.mp4", cfg.MainPath)
	assert.Equal(t, "result.mp4", cfg.OutputVideo)
	assert.Equal(t, 30, cfg.Output.FPS)
	assert.Equal(t, "libx264", cfg.Output.Codec)
	assert.Empty(t, cfg.Watermark.Text)
	assert.Equal(t, "https://example.com", cfg.Watermark.QRPayload)
	assert.True(t, cfg.KeepTemp)
	assert.Equal(t, 0.5, cfg.Watermark.Opacity)
}

type stubClip struct{ source.Info }

func (c stubClip) Path() string       { return c.Info.Path }
func (c stubClip) Duration() float64  { return c.Info.Duration }
func (c stubClip) FrameRate() float64 { return c.Info.FrameRate }
func (c stubClip) Size() (int, int)   { return c.Width, c.Height }
func (c stubClip) HasAudio() bool     { return c.Audio }
func (c stubClip) Close() error       { return nil }
func (c stubClip) Frames(context.Context, float64, float64, int) (source.FrameReader, error) {
	return nil, errors.New("not decodable")
}

type stubOpener map[string]source.Info

func (o stubOpener) Open(_ context.Context, path string) (source.Clip, error) {
	info, ok := o[path]
	if !ok {
		return nil, source.ErrSourceNotFound
	}
	return stubClip{info}, nil
}

func TestProbeAll(t *testing.T) {
	opener := stubOpener{
		"/v/main.mp4":  {Path: "/v/main.mp4", Duration: 38, FrameRate: 24, Width: 1920, Height: 1080, Audio: true},
		"/v/intro.mov": {Path: "/v/intro.mov", Duration: 12.5, FrameRate: 25, Width: 1280, Height: 720},
	}

	infos, err := probeAll(context.Background(), opener, []string{"/v/main.mp4", "/v/intro.mov"})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "/v/main.mp4", infos[0].Path)
	assert.Equal(t, 1280, infos[1].Width)

	table := renderProbeTable(infos)
	assert.Contains(t, table, "main.mp4")
	assert.Contains(t, table, "1920x1080")
	assert.Contains(t, table, "912")
	assert.Contains(t, table, "24.000")
	lines := strings.Split(table, "\n")
	assert.Greater(t, len(lines), 4)

	_, err = probeAll(context.Background(), opener, []string{"/v/main.mp4", "/v/missing.mp4"})
	assert.ErrorIs(t, err, source.ErrSourceNotFound)
}

func TestProgressDisplayPlain(t *testing.T) {
	var out bytes.Buffer
	d := newProgressDisplay(&out)
	d.set(10)
	d.set(10)
	d.set(5)
	d.set(100)
	d.done()

	assert.Equal(t, "[*] Прогресс: 10%\n[*] Прогресс: 100%\n", out.String())
}

func TestRenderTablePadsRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}}, nil)
	assert.Contains(t, out, "A")
	assert.Contains(t, out, "3")
	assert.Empty(t, renderTable(nil, nil, nil))
}
