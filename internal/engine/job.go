package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/zoomcut/internal/config"
	"github.com/ivlev/zoomcut/internal/director"
	"github.com/ivlev/zoomcut/internal/renderer"
	"github.com/ivlev/zoomcut/internal/source"
	"github.com/ivlev/zoomcut/internal/system"
	"github.com/ivlev/zoomcut/internal/video"
)

var (
	ErrOutputUnwritable = errors.New("output path is not writable")
	ErrOutputBusy       = errors.New("another job is writing this output")
	ErrJobNotIdle       = errors.New("job already started")
	ErrJobNotRunning    = errors.New("job is not running")
)

// JobState - состояние задачи. Idle -> Running -> {Completed|Failed|Cancelled},
// Cancelling - Running после вызова Stop.
type JobState int32

const (
	StateIdle JobState = iota
	StateRunning
	StateCancelling
	StateCompleted
	StateFailed
	StateCancelled
)

var stateNames = [...]string{"idle", "running", "cancelling", "completed", "failed", "cancelled"}

func (s JobState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Final сообщает, что задача завершена.
func (s JobState) Final() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Result - итог задачи, доступен через Wait.
type Result struct {
	State    JobState
	Path     string
	Err      error
	Units    int
	Plan     *director.Plan
	Elapsed  time.Duration
	Assembly time.Duration
	Encode   time.Duration
}

// RenderJob собирает один выходной ролик из интро и основного ролика.
// Вся работа идет в одной фоновой горутине, вызывающий общается с ней
// только через Stop и поток событий.
type RenderJob struct {
	cfg     config.Config
	opener  source.Opener
	encoder video.VideoEncoder
	logger  hclog.Logger
	id      string

	mu     sync.Mutex
	state  JobState
	result Result

	stop   atomic.Bool
	queue  *eventQueue
	events chan Event
	done   chan struct{}
	lock   *outputLock
	cancel context.CancelFunc
}

func NewRenderJob(cfg *config.Config, opener source.Opener, encoder video.VideoEncoder, logger hclog.Logger) *RenderJob {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	id := uuid.NewString()
	return &RenderJob{
		cfg:     *cfg,
		opener:  opener,
		encoder: encoder,
		logger:  logger.Named("job").With("job_id", id),
		id:      id,
		queue:   newEventQueue(),
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
	}
}

func (j *RenderJob) ID() string { return j.id }

func (j *RenderJob) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Events - поток событий. Канал закрывается после терминального события.
func (j *RenderJob) Events() <-chan Event { return j.events }

// Wait блокируется до завершения задачи. До Start возвращает сразу
// результат с состоянием Idle. После Wait поток событий больше не ждет
// читателя: непрочитанный прогресс теряется, канал закрывается.
func (j *RenderJob) Wait() Result {
	if j.State() == StateIdle {
		return Result{State: StateIdle}
	}
	<-j.done
	j.queue.detach()
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Start проверяет входы синхронно и запускает воркер. Ошибки проверки
// возвращаются сразу, задача при этом остается Idle.
func (j *RenderJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateIdle {
		return ErrJobNotIdle
	}

	j.cfg.OutputVideo = config.NormalizeOutputPath(j.cfg.OutputVideo)
	if err := j.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, p := range []string{j.cfg.MainPath, j.cfg.IntroPath} {
		if err := checkSource(p); err != nil {
			return err
		}
	}
	if err := checkOutputWritable(j.cfg.OutputVideo); err != nil {
		return err
	}
	lock, err := acquireOutputLock(j.cfg.OutputVideo)
	if err != nil {
		return err
	}
	j.lock = lock

	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.state = StateRunning
	j.logger.Info("job started", "main", j.cfg.MainPath, "intro", j.cfg.IntroPath, "output", j.cfg.OutputVideo)

	go j.queue.pump(j.events)
	go j.work(runCtx)
	return nil
}

// Stop просит воркер остановиться на ближайшей границе сегмента.
// Текущий сегмент дорабатывает до конца.
func (j *RenderJob) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.state {
	case StateRunning:
		j.state = StateCancelling
		j.stop.Store(true)
		j.logger.Info("stop requested")
		return nil
	case StateCancelling:
		return nil
	}
	return ErrJobNotRunning
}

// Run - Start и Wait одним вызовом.
func (j *RenderJob) Run(ctx context.Context) Result {
	if err := j.Start(ctx); err != nil {
		return Result{State: StateFailed, Err: err}
	}
	return j.Wait()
}

func checkSource(path string) error {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return fmt.Errorf("%w: %s", source.ErrSourceNotFound, path)
	}
	return nil
}

func (j *RenderJob) stopRequested(ctx context.Context) bool {
	return j.stop.Load() || ctx.Err() != nil
}

func (j *RenderJob) finish(res Result) {
	j.mu.Lock()
	j.state = res.State
	j.result = res
	j.mu.Unlock()

	switch res.State {
	case StateCompleted:
		j.logger.Info("job completed", "output", res.Path, "elapsed", res.Elapsed.Round(time.Millisecond))
		j.queue.push(Event{Kind: EventCompleted, Path: res.Path})
	case StateCancelled:
		j.logger.Info("job cancelled")
		j.queue.push(Event{Kind: EventCancelled})
	default:
		j.logger.Error("job failed", "error", res.Err)
		j.queue.push(Event{Kind: EventFailed, Reason: res.Err.Error()})
	}
	close(j.done)
}

func (j *RenderJob) work(ctx context.Context) {
	started := time.Now()
	res := j.execute(ctx)
	res.Elapsed = time.Since(started)
	interrupted := ctx.Err() != nil

	j.cancel()
	if err := j.lock.release(); err != nil {
		j.logger.Warn("cannot release output lock", "error", err)
	}

	switch {
	case res.Err == nil:
		res.State = StateCompleted
	case errors.Is(res.Err, renderer.ErrStopped), errors.Is(res.Err, context.Canceled), interrupted:
		res.State = StateCancelled
	default:
		res.State = StateFailed
	}
	j.finish(res)
}

// execute - весь конвейер: открытие, план, нарезка, склейка, кодирование.
func (j *RenderJob) execute(ctx context.Context) (res Result) {
	intro, main, err := j.openClips(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	defer j.closeClip(intro)
	defer j.closeClip(main)

	plan, err := director.NewDirector(j.cfg.Rules).Plan(main.Duration())
	if err != nil {
		res.Err = fmt.Errorf("plan: %w", err)
		return res
	}
	plan.WithIntro(intro.Duration())
	res.Plan = plan
	j.logger.Debug("plan ready", "rules", j.cfg.Rules.String(), "entries", len(plan.Entries),
		"zooms", plan.Count(director.KindZoom), "output_seconds", plan.OutputDuration())

	tmpDir, err := os.MkdirTemp("", "zoomcut_")
	if err != nil {
		res.Err = err
		return res
	}
	if j.cfg.KeepTemp {
		j.logger.Info("keeping temp dir", "path", tmpDir)
	} else {
		defer os.RemoveAll(tmpDir)
	}

	width, height := OutputSize(j.cfg.Output, main)
	params := config.SegmentParams{
		Width:   width,
		Height:  height,
		FPS:     j.cfg.Output.FPS,
		Encoder: system.ResolveSegmentEncoder(ctx, j.cfg.Output.SegmentEncoder),
		Quality: j.cfg.Output.Quality,
	}

	seed := j.cfg.Rules.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	asm := &renderer.Assembler{
		Extractor:  j.encoder,
		Params:     params,
		Rng:        rand.New(rand.NewSource(seed)),
		TmpDir:     tmpDir,
		ShouldStop: j.stop.Load,
		Logger:     j.logger,
	}

	progress := newProgress(plan.TotalFrames(main.FrameRate()))
	assemblyStart := time.Now()
	units, err := asm.Assemble(ctx, intro, main, plan, func(_ director.Entry, frames int) {
		if pct, ok := progress.add(frames); ok {
			j.queue.push(Event{Kind: EventProgress, Percent: pct})
		}
	})
	res.Assembly = time.Since(assemblyStart)
	if err != nil {
		res.Err = err
		return res
	}
	res.Units = len(units)

	if j.stopRequested(ctx) {
		res.Err = renderer.ErrStopped
		return res
	}

	encodeStart := time.Now()
	merged, err := j.encoder.Concatenate(ctx, renderer.Paths(units), tmpDir)
	if err != nil {
		res.Err = fmt.Errorf("concatenate: %w", err)
		return res
	}
	if j.stopRequested(ctx) {
		res.Err = renderer.ErrStopped
		return res
	}

	partial := partialPath(j.cfg.OutputVideo, j.id)
	if err := j.encoder.Write(ctx, merged, partial, j.cfg.Output, j.cfg.Watermark, tmpDir); err != nil {
		os.Remove(partial)
		res.Err = fmt.Errorf("encode: %w", err)
		return res
	}
	// Stop во время кодирования: результат не публикуется.
	if j.stopRequested(ctx) {
		os.Remove(partial)
		res.Err = renderer.ErrStopped
		return res
	}
	if err := os.Rename(partial, j.cfg.OutputVideo); err != nil {
		os.Remove(partial)
		res.Err = fmt.Errorf("move output: %w", err)
		return res
	}
	res.Encode = time.Since(encodeStart)

	if pct, ok := progress.finish(); ok {
		j.queue.push(Event{Kind: EventProgress, Percent: pct})
	}
	res.Path = j.cfg.OutputVideo
	return res
}

// openClips открывает оба ролика параллельно. При ошибке уже открытый
// ролик закрывается.
func (j *RenderJob) openClips(ctx context.Context) (intro, main source.Clip, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := j.opener.Open(gctx, j.cfg.MainPath)
		if err != nil {
			return fmt.Errorf("open main: %w", err)
		}
		main = c
		return nil
	})
	g.Go(func() error {
		c, err := j.opener.Open(gctx, j.cfg.IntroPath)
		if err != nil {
			return fmt.Errorf("open intro: %w", err)
		}
		intro = c
		return nil
	})
	if err := g.Wait(); err != nil {
		j.closeClip(intro)
		j.closeClip(main)
		return nil, nil, err
	}
	return intro, main, nil
}

func (j *RenderJob) closeClip(c source.Clip) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		j.logger.Warn("close clip", "path", c.Path(), "error", err)
	}
}

// OutputSize - размер выходного кадра: из настроек или размер основного
// ролика, округленный вниз до четного (требование yuv420p).
func OutputSize(o config.Output, main source.Clip) (int, int) {
	if o.Width > 0 && o.Height > 0 {
		return o.Width, o.Height
	}
	w, h := main.Size()
	return even(w), even(h)
}

func even(v int) int {
	v &^= 1
	if v < 2 {
		return 2
	}
	return v
}

// progressMeter переводит обработанные кадры основного ролика в проценты
// и пропускает повторы: проценты только растут.
type progressMeter struct {
	total     int
	processed int
	last      int
}

func newProgress(total int) *progressMeter {
	return &progressMeter{total: total, last: -1}
}

func (p *progressMeter) add(frames int) (int, bool) {
	p.processed += frames
	if p.total <= 0 {
		return 0, false
	}
	pct := 100 * p.processed / p.total
	if pct > 100 {
		pct = 100
	}
	if pct <= p.last {
		return 0, false
	}
	p.last = pct
	return pct, true
}

// finish отдает 100, если оно еще не было отправлено.
func (p *progressMeter) finish() (int, bool) {
	if p.last >= 100 {
		return 0, false
	}
	p.last = 100
	return 100, true
}
