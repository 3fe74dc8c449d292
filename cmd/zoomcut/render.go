package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/ivlev/zoomcut/internal/config"
	"github.com/ivlev/zoomcut/internal/engine"
	"github.com/ivlev/zoomcut/internal/source"
	"github.com/ivlev/zoomcut/internal/system"
	"github.com/ivlev/zoomcut/internal/video"
)

func newRenderCommand(opts *globalOptions) *cobra.Command {
	var rules ruleFlags
	var out outputFlags
	var showStats bool

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Собрать итоговый ролик",
		Example: "  zoomcut render --intro intro.mp4 --main lecture.mp4 -o result.mp4\n" +
			"  zoomcut render -c rules.yaml --preset short --seed 42",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := rules.apply(cmd, &cfg.Rules); err != nil {
				return err
			}
			out.apply(cmd, cfg)
			return runRender(cmd.Context(), cfg, opts.logger(), cmd.OutOrStdout(), showStats)
		},
	}
	rules.register(cmd)
	out.register(cmd)
	cmd.Flags().BoolVar(&showStats, "stats", false, "Показать отчет о производительности")
	return cmd
}

func runRender(parent context.Context, cfg *config.Config, logger hclog.Logger, w io.Writer, showStats bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits(logger)
	if err := system.CheckTools(); err != nil {
		return err
	}

	host := system.ReadHostStats(ctx)
	encoder := video.NewFFmpegEncoder(cfg.Workers, host, logger)
	job := engine.NewRenderJob(cfg, source.NewFFprobeOpener(), encoder, logger)

	fmt.Fprintln(w, "--- [ZOOMCUT] ---")
	fmt.Fprintf(w, "[*] Интро: %s\n", cfg.IntroPath)
	fmt.Fprintf(w, "[*] Основное видео: %s\n", cfg.MainPath)
	fmt.Fprintf(w, "[*] Правила: %s\n", cfg.Rules.String())
	fmt.Fprintf(w, "[*] Выход: %s (%s/%s @ %d FPS)\n", cfg.OutputVideo, cfg.Output.Codec, cfg.Output.AudioCodec, cfg.Output.FPS)
	fmt.Fprintln(w, "-----------------")

	if err := job.Start(ctx); err != nil {
		return err
	}

	// Первый Ctrl+C - остановка на границе сегмента, второй - прерывание ffmpeg.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		stopped := false
		for {
			select {
			case <-sigCh:
				if !stopped {
					stopped = true
					if job.Stop() == nil {
						fmt.Fprintln(os.Stderr, "\n[!] Остановка после текущего сегмента (Ctrl+C еще раз - прервать сразу)")
					}
					continue
				}
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	display := newProgressDisplay(w)
	for ev := range job.Events() {
		switch ev.Kind {
		case engine.EventProgress:
			display.set(ev.Percent)
		default:
			display.done()
		}
	}

	res := job.Wait()
	switch res.State {
	case engine.StateCompleted:
		if showStats {
			printStats(w, res)
		}
		fmt.Fprintf(w, "[+++] Успех! Результат: %s\n", res.Path)
		return nil
	case engine.StateCancelled:
		fmt.Fprintln(w, "[!] Сборка отменена, файл не создан")
		return context.Canceled
	default:
		return res.Err
	}
}

func printStats(w io.Writer, res engine.Result) {
	outSeconds := 0.0
	if res.Plan != nil {
		outSeconds = res.Plan.OutputDuration()
	}
	speed := 0.0
	if res.Elapsed > 0 {
		speed = outSeconds / res.Elapsed.Seconds()
	}
	fmt.Fprintf(w,
		"--- [PERFORMANCE REPORT] ---\n"+
			"Total Time: %.2fs\n"+
			"Assembly: %.2fs (%d segments)\n"+
			"Concat + Encode: %.2fs\n"+
			"Output Length: %.2fs\n"+
			"Speed: %.2fx realtime\n"+
			"----------------------------\n",
		res.Elapsed.Seconds(), res.Assembly.Seconds(), res.Units,
		res.Encode.Seconds(), outSeconds, speed,
	)
}
