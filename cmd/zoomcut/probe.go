package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/zoomcut/internal/source"
)

func newProbeCommand(_ *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <video>...",
		Short: "Показать длительность, FPS, размер и наличие звука",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			infos, err := probeAll(ctx, source.NewFFprobeOpener(), args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProbeTable(infos))
			return nil
		},
	}
}

// probeAll открывает файлы параллельно, порядок результата как у paths.
func probeAll(ctx context.Context, opener source.Opener, paths []string) ([]source.Info, error) {
	infos := make([]source.Info, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			clip, err := opener.Open(gctx, p)
			if err != nil {
				return err
			}
			defer clip.Close()
			w, h := clip.Size()
			infos[i] = source.Info{
				Path:      p,
				Duration:  clip.Duration(),
				FrameRate: clip.FrameRate(),
				Width:     w,
				Height:    h,
				Audio:     clip.HasAudio(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

func renderProbeTable(infos []source.Info) string {
	rows := make([][]string, 0, len(infos))
	for _, in := range infos {
		audio := "no"
		if in.Audio {
			audio = "yes"
		}
		rows = append(rows, []string{
			filepath.Base(in.Path),
			formatSeconds(in.Duration),
			strconv.FormatFloat(in.FrameRate, 'f', 3, 64),
			fmt.Sprintf("%dx%d", in.Width, in.Height),
			audio,
			strconv.Itoa(in.Frames()),
		})
	}
	return renderTable(
		[]string{"File", "Duration", "FPS", "Size", "Audio", "Frames"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight},
	)
}
