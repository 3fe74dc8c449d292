package renderer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/ivlev/zoomcut/internal/config"
	"github.com/ivlev/zoomcut/internal/director"
	"github.com/ivlev/zoomcut/internal/effects"
	"github.com/ivlev/zoomcut/internal/source"
)

// ErrStopped is returned when the stop hook fires between entries.
var ErrStopped = errors.New("assembly stopped")

// Extractor realises time ranges of a clip into intermediate files.
// video.FFmpegEncoder satisfies it.
type Extractor interface {
	Extract(ctx context.Context, clip source.Clip, start, end float64, dst string, params config.SegmentParams) error
	ExtractZoomed(ctx context.Context, clip source.Clip, start, end float64, transform effects.FrameTransform, dst string, params config.SegmentParams) error
}

// Unit is one realised, output-ready piece of the timeline.
type Unit struct {
	Index       int
	Kind        director.SegmentKind
	Path        string
	Start       float64
	End         float64
	Rect        *effects.ZoomRect
	ZoomPercent int
}

// Duration in seconds.
func (u Unit) Duration() float64 {
	return u.End - u.Start
}

// ExtractionError reports which entry failed to realise.
type ExtractionError struct {
	Entry director.Entry
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Entry, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ProgressFunc is called after every plan entry with the number of main-clip
// frames that entry consumed. Skips report their frames too.
type ProgressFunc func(entry director.Entry, frames int)

// Assembler turns a plan into an ordered list of units.
type Assembler struct {
	Extractor Extractor
	// Params carries the output geometry, fps and intermediate encoder.
	Params config.SegmentParams
	Rng    *rand.Rand
	TmpDir string
	// ShouldStop is consulted before every entry.
	ShouldStop func() bool
	Logger     hclog.Logger
}

func (a *Assembler) logger() hclog.Logger {
	if a.Logger == nil {
		return hclog.NewNullLogger()
	}
	return a.Logger
}

func (a *Assembler) stopped(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.ShouldStop != nil && a.ShouldStop() {
		return ErrStopped
	}
	return nil
}

func (a *Assembler) segmentPath(n int) string {
	return filepath.Join(a.TmpDir, fmt.Sprintf("s%d.mp4", n))
}

// Assemble realises plan.Intro from the intro clip, then every plan entry of
// the main clip in order. Play entries are extracted as is, zoom entries get
// a random rectangle and a ZoomTransform, skips produce nothing.
//
// On error or stop the partial result is discarded; the files stay in TmpDir
// for the caller to clean up.
func (a *Assembler) Assemble(ctx context.Context, intro, main source.Clip, plan *director.Plan, progress ProgressFunc) ([]Unit, error) {
	if a.Extractor == nil {
		return nil, errors.New("assembler has no extractor")
	}
	rng := a.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	units := make([]Unit, 0, len(plan.Entries)+1)
	params := a.Params
	mainFPS := main.FrameRate()

	if plan.Intro != nil {
		if err := a.stopped(ctx); err != nil {
			return nil, err
		}
		e := *plan.Intro
		params.SegmentIndex = len(units)
		dst := a.segmentPath(len(units))
		if err := a.Extractor.Extract(ctx, intro, e.Start, e.End, dst, params); err != nil {
			return nil, &ExtractionError{Entry: e, Err: err}
		}
		units = append(units, Unit{Index: len(units), Kind: director.KindIntro, Path: dst, Start: e.Start, End: e.End})
		a.logger().Debug("unit ready", "entry", e.String(), "path", dst)
	}

	sw, sh := main.Size()
	for _, e := range plan.Entries {
		if err := a.stopped(ctx); err != nil {
			return nil, err
		}

		params.SegmentIndex = len(units)
		dst := a.segmentPath(len(units))
		switch e.Kind {
		case director.KindPlay:
			if err := a.Extractor.Extract(ctx, main, e.Start, e.End, dst, params); err != nil {
				return nil, &ExtractionError{Entry: e, Err: err}
			}
			units = append(units, Unit{Index: len(units), Kind: e.Kind, Path: dst, Start: e.Start, End: e.End})
			a.logger().Debug("unit ready", "entry", e.String(), "path", dst)

		case director.KindZoom:
			pct, _ := e.Zoom()
			rect := effects.ChooseRect(rng, sw, sh, pct)
			transform := effects.NewZoomTransform(rect, params.Width, params.Height)
			if err := a.Extractor.ExtractZoomed(ctx, main, e.Start, e.End, transform, dst, params); err != nil {
				return nil, &ExtractionError{Entry: e, Err: err}
			}
			units = append(units, Unit{
				Index: len(units), Kind: e.Kind, Path: dst,
				Start: e.Start, End: e.End,
				Rect: &rect, ZoomPercent: pct,
			})
			a.logger().Debug("unit ready", "entry", e.String(), "rect", rect.String(), "path", dst)

		case director.KindSkip:
			a.logger().Trace("skip", "entry", e.String())

		default:
			return nil, &ExtractionError{Entry: e, Err: fmt.Errorf("unexpected segment kind %s", e.Kind)}
		}

		if progress != nil {
			progress(e, e.FrameCount(mainFPS))
		}
	}

	return units, nil
}

// Paths returns unit files in timeline order.
func Paths(units []Unit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Path
	}
	return out
}
