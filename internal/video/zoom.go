package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/zoomcut/internal/config"
	"github.com/ivlev/zoomcut/internal/effects"
	"github.com/ivlev/zoomcut/internal/source"
	"github.com/ivlev/zoomcut/internal/system"
)

// ExtractZoomed декодирует диапазон в RGBA, применяет transform к каждому
// кадру на пуле воркеров и отдает кадры в ffmpeg через stdin (rawvideo),
// сохраняя порядок. Звук берется из того же диапазона исходника.
func (e *FFmpegEncoder) ExtractZoomed(ctx context.Context, clip source.Clip, start, end float64, transform effects.FrameTransform, dst string, p config.SegmentParams) error {
	if end <= start {
		return fmt.Errorf("zoom %s: empty range [%g, %g)", clip.Path(), start, end)
	}
	p.Start, p.Duration = start, end-start
	ow, oh := transform.OutputSize()
	p.Width, p.Height = ow, oh
	sw, sh := clip.Size()

	frames, err := clip.Frames(ctx, start, end, p.FPS)
	if err != nil {
		return fmt.Errorf("zoom decode: %w", err)
	}
	defer frames.Close()

	args := buildZoomArgs(clip.Path(), clip.HasAudio(), dst, p)
	e.logger().Trace("run", "op", "zoom", "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, e.binary(), args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	workers := system.FrameWorkers(e.Host, e.Workers, (sw*sh+ow*oh)*4)
	pipeErr := pumpFrames(ctx, frames, transform, stdin, sw, sh, TargetFrames(p.Duration, p.FPS), workers)
	stdin.Close()

	if pipeErr != nil {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
		return pipeErr
	}
	if err := cmd.Wait(); err != nil {
		return &EncodeError{Op: "zoom", Err: err, Output: tail(out.Bytes())}
	}
	return nil
}

// TargetFrames - сколько кадров должно быть в сегменте длительностью
// duration при частоте fps (не меньше одного).
func TargetFrames(duration float64, fps int) int {
	n := int(math.Round(duration * float64(fps)))
	if n < 1 {
		n = 1
	}
	return n
}

func buildZoomArgs(input string, hasAudio bool, dst string, p config.SegmentParams) []string {
	args := []string{
		"-y", "-v", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", fmt.Sprintf("%d", p.FPS),
		"-i", "-",
	}
	// Вход 1 - звук исходника или тишина, в обоих случаях "1:a:0".
	if hasAudio {
		args = append(args,
			"-ss", fmt.Sprintf("%f", p.Start),
			"-t", fmt.Sprintf("%f", p.Duration),
			"-i", input,
		)
	} else {
		args = append(args, audioInputArgs(false, p.Duration)...)
	}
	args = append(args,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-vf", "setsar=1",
	)
	args = append(args, segmentCodecArgs(hasAudio, p)...)
	return append(args, dst)
}

type frameJob struct {
	src, dst *image.RGBA
	done     chan struct{}
}

// pumpFrames: декодер -> воркеры (transform) -> писатель в порядке
// декодирования. Ровно target кадров: лишние отбрасываются, нехватка
// добивается повтором последнего кадра.
func pumpFrames(ctx context.Context, frames source.FrameReader, transform effects.FrameTransform, w io.Writer, sw, sh, target, workers int) error {
	ow, oh := transform.OutputSize()
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan *frameJob, workers)
	ordered := make(chan *frameJob, workers)

	// Декодер
	g.Go(func() error {
		defer close(ordered)
		defer close(jobs)
		for i := 0; i < target; i++ {
			src := system.GetFrame(sw, sh)
			if err := frames.Next(src); err != nil {
				system.PutFrame(src)
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("decode frame %d: %w", i, err)
			}
			job := &frameJob{src: src, dst: system.GetFrame(ow, oh), done: make(chan struct{})}
			select {
			case jobs <- job:
			case <-gctx.Done():
				system.PutFrame(src)
				return gctx.Err()
			}
			select {
			case ordered <- job:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// Воркеры
	for n := 0; n < workers; n++ {
		g.Go(func() error {
			for job := range jobs {
				transform.Apply(job.dst, job.src)
				system.PutFrame(job.src)
				close(job.done)
			}
			return nil
		})
	}

	// Писатель
	written := 0
	g.Go(func() error {
		var last *image.RGBA
		for job := range ordered {
			select {
			case <-job.done:
			case <-gctx.Done():
				return gctx.Err()
			}
			if _, err := w.Write(job.dst.Pix); err != nil {
				return fmt.Errorf("write raw error: %w", err)
			}
			if last != nil {
				system.PutFrame(last)
			}
			last = job.dst
			written++
		}
		if last == nil {
			return nil
		}
		defer system.PutFrame(last)
		for ; written < target; written++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := w.Write(last.Pix); err != nil {
				return fmt.Errorf("write raw error: %w", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if written == 0 {
		return errors.New("no frames decoded")
	}
	return nil
}
