package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ivlev/zoomcut/internal/director"
	"github.com/ivlev/zoomcut/internal/source"
)

func newPlanCommand(opts *globalOptions) *cobra.Command {
	var rules ruleFlags
	var duration, introDuration float64
	var outPath string

	cmd := &cobra.Command{
		Use:   "plan [main-video]",
		Short: "Показать план нарезки без рендера",
		Long: "Строит план play/zoom/skip для длительности из --duration или из файла.\n" +
			"С --out план сохраняется в YAML.",
		Example: "  zoomcut plan --duration 38 --preset short\n" +
			"  zoomcut plan lecture.mp4 --out plan.yaml",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := rules.apply(cmd, &cfg.Rules); err != nil {
				return err
			}

			d := duration
			if len(args) == 1 {
				d, err = probeDuration(cmd.Context(), args[0])
				if err != nil {
					return err
				}
			} else if !cmd.Flags().Changed("duration") {
				return fmt.Errorf("укажите файл или --duration")
			}

			plan, err := director.BuildPlan(d, cfg.Rules)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("intro-duration") {
				plan.WithIntro(introDuration)
			}

			printPlan(cmd.OutOrStdout(), plan)
			if outPath != "" {
				if err := director.WritePlan(plan, outPath); err != nil {
					return fmt.Errorf("сохранение плана: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[+++] План сохранен: %s\n", outPath)
			}
			return nil
		},
	}
	rules.register(cmd)
	cmd.Flags().Float64Var(&duration, "duration", 0, "Длительность основного ролика (сек)")
	cmd.Flags().Float64Var(&introDuration, "intro-duration", 0, "Длительность ролика интро (сек)")
	cmd.Flags().StringVar(&outPath, "out", "", "Сохранить план в YAML")
	return cmd
}

func probeDuration(ctx context.Context, path string) (float64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	clip, err := source.NewFFprobeOpener().Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer clip.Close()
	return clip.Duration(), nil
}

func printPlan(w io.Writer, plan *director.Plan) {
	var rows [][]string
	if plan.Intro != nil {
		rows = append(rows, planRow("-", *plan.Intro))
	}
	for _, e := range plan.Entries {
		rows = append(rows, planRow(strconv.Itoa(e.Index), e))
	}

	fmt.Fprintf(w, "[*] Правила: %s\n", plan.Rules.String())
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Kind", "Start", "End", "Length", "Zoom"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	fmt.Fprintf(w, "[*] Исходник: %.2fs, сегментов: %d (play %d, zoom %d, skip %d)\n",
		plan.SourceDuration, len(plan.Entries),
		plan.Count(director.KindPlay), plan.Count(director.KindZoom), plan.Count(director.KindSkip))
	fmt.Fprintf(w, "[*] Длительность результата: %.2fs\n", plan.OutputDuration())
}

func planRow(index string, e director.Entry) []string {
	zoom := ""
	if pct, ok := e.Zoom(); ok {
		zoom = fmt.Sprintf("%d%%", pct)
	}
	return []string{
		index,
		e.Kind.String(),
		formatSeconds(e.Start),
		formatSeconds(e.End),
		formatSeconds(e.Duration()),
		zoom,
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 2, 64)
}
