package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/skip2/go-qrcode"

	"github.com/ivlev/zoomcut/internal/config"
	"github.com/ivlev/zoomcut/internal/effects"
	"github.com/ivlev/zoomcut/internal/source"
	"github.com/ivlev/zoomcut/internal/system"
)

// VideoEncoder - внешний движок кодирования.
type VideoEncoder interface {
	// Extract перекодирует диапазон ролика в промежуточный сегмент.
	Extract(ctx context.Context, clip source.Clip, start, end float64, dst string, params config.SegmentParams) error
	// ExtractZoomed делает то же, пропуская каждый кадр через transform.
	ExtractZoomed(ctx context.Context, clip source.Clip, start, end float64, transform effects.FrameTransform, dst string, params config.SegmentParams) error
	// Concatenate склеивает сегменты по порядку без перекодирования.
	Concatenate(ctx context.Context, segmentPaths []string, tmpDir string) (*MergedStream, error)
	// Write кодирует склеенный поток в итоговый файл.
	Write(ctx context.Context, merged *MergedStream, outputPath string, out config.Output, wm config.Watermark, tmpDir string) error
}

// MergedStream - результат склейки, вход для финального кодирования.
type MergedStream struct {
	Path     string
	ListPath string
	Segments []string
}

// EncodeError - сбой ffmpeg с хвостом его вывода.
type EncodeError struct {
	Op     string
	Err    error
	Output string
}

func (e *EncodeError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("ffmpeg %s error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ffmpeg %s error: %v, output: %s", e.Op, e.Err, e.Output)
}

func (e *EncodeError) Unwrap() error { return e.Err }

const (
	audioRate   = "48000"
	audioLayout = "stereo"
	maxErrTail  = 2000
)

// FFmpegEncoder реализует VideoEncoder через системный FFmpeg.
type FFmpegEncoder struct {
	FFmpeg  string
	Workers int
	Host    system.HostStats
	Logger  hclog.Logger
}

func NewFFmpegEncoder(workers int, host system.HostStats, logger hclog.Logger) *FFmpegEncoder {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &FFmpegEncoder{
		FFmpeg:  "ffmpeg",
		Workers: workers,
		Host:    host,
		Logger:  logger.Named("ffmpeg"),
	}
}

func (e *FFmpegEncoder) binary() string {
	if e.FFmpeg == "" {
		return "ffmpeg"
	}
	return e.FFmpeg
}

func (e *FFmpegEncoder) logger() hclog.Logger {
	if e.Logger == nil {
		return hclog.NewNullLogger()
	}
	return e.Logger
}

func (e *FFmpegEncoder) run(ctx context.Context, op string, args []string) error {
	e.logger().Trace("run", "op", op, "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, e.binary(), args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return &EncodeError{Op: op, Err: err, Output: tail(out)}
	}
	return nil
}

func (e *FFmpegEncoder) Extract(ctx context.Context, clip source.Clip, start, end float64, dst string, p config.SegmentParams) error {
	if end <= start {
		return fmt.Errorf("extract %s: empty range [%g, %g)", clip.Path(), start, end)
	}
	p.Start, p.Duration = start, end-start
	args := buildExtractArgs(clip.Path(), clip.HasAudio(), (&effects.FitEffect{}).GenerateFilter(p), dst, p)
	return e.run(ctx, "extract", args)
}

// buildExtractArgs: сегмент приводится к общему формату (размер, FPS,
// yuv420p, AAC 48кГц стерео), чтобы склейка шла без перекодирования.
// Если у источника нет звука, подкладывается тишина.
func buildExtractArgs(input string, hasAudio bool, filter, dst string, p config.SegmentParams) []string {
	args := []string{
		"-y", "-v", "error",
		"-ss", fmt.Sprintf("%f", p.Start),
		"-t", fmt.Sprintf("%f", p.Duration),
		"-i", input,
	}
	args = append(args, audioInputArgs(hasAudio, p.Duration)...)
	args = append(args,
		"-map", "0:v:0",
		"-map", audioMap(hasAudio, 1),
		"-vf", filter,
	)
	args = append(args, segmentCodecArgs(hasAudio, p)...)
	return append(args, dst)
}

func audioInputArgs(hasAudio bool, duration float64) []string {
	if hasAudio {
		return nil
	}
	return []string{
		"-f", "lavfi",
		"-t", fmt.Sprintf("%f", duration),
		"-i", fmt.Sprintf("anullsrc=channel_layout=%s:sample_rate=%s", audioLayout, audioRate),
	}
}

// audioMap: звук берется из основного входа или из входа с тишиной.
func audioMap(hasAudio bool, silenceInput int) string {
	if hasAudio {
		return "0:a:0"
	}
	return fmt.Sprintf("%d:a:0", silenceInput)
}

func segmentCodecArgs(hasAudio bool, p config.SegmentParams) []string {
	args := []string{"-c:v", p.Encoder}
	args = append(args, system.QualityArgs(p.Encoder, p.Quality)...)
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", p.FPS),
		"-c:a", "aac",
		"-ar", audioRate,
		"-ac", "2",
	)
	if hasAudio {
		// Короткую дорожку добиваем тишиной до длины видео.
		args = append(args, "-af", "apad")
	}
	return append(args, "-t", fmt.Sprintf("%f", p.Duration))
}

// Concatenate склеивает сегменты через concat demuxer с -c copy.
func (e *FFmpegEncoder) Concatenate(ctx context.Context, segmentPaths []string, tmpDir string) (*MergedStream, error) {
	if len(segmentPaths) == 0 {
		return nil, fmt.Errorf("nothing to concatenate")
	}

	listPath := filepath.Join(tmpDir, "inputs.txt")
	if err := writeConcatList(listPath, segmentPaths); err != nil {
		return nil, err
	}

	merged := filepath.Join(tmpDir, "merged"+filepath.Ext(segmentPaths[0]))
	args := []string{
		"-y", "-v", "error",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-c", "copy", merged,
	}
	if err := e.run(ctx, "concat", args); err != nil {
		return nil, err
	}
	return &MergedStream{Path: merged, ListPath: listPath, Segments: segmentPaths}, nil
}

func writeConcatList(listPath string, segmentPaths []string) error {
	var b bytes.Buffer
	for _, p := range segmentPaths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(absPath, "'", `'\''`))
	}
	return os.WriteFile(listPath, b.Bytes(), 0644)
}

// Write кодирует итоговый файл с целевыми кодеками и FPS и накладывает
// водяной знак.
func (e *FFmpegEncoder) Write(ctx context.Context, merged *MergedStream, outputPath string, out config.Output, wm config.Watermark, tmpDir string) error {
	qrPath := ""
	if wm.QRPayload != "" {
		qrPath = filepath.Join(tmpDir, "qr.png")
		size := wm.QRSize
		if size <= 0 {
			size = 160
		}
		if err := qrcode.WriteFile(wm.QRPayload, qrcode.Medium, size, qrPath); err != nil {
			return fmt.Errorf("render qr watermark: %w", err)
		}
	}

	args := buildWriteArgs(merged.Path, qrPath, outputPath, out, wm)
	return e.run(ctx, "write", args)
}

func buildWriteArgs(input, qrPath, outputPath string, out config.Output, wm config.Watermark) []string {
	args := []string{"-y", "-v", "error", "-i", input}

	qrInput := -1
	if qrPath != "" {
		qrInput = 1
		args = append(args, "-i", qrPath)
	}

	graph, vout := (&effects.WatermarkEffect{Watermark: wm}).Graph(qrInput)
	if graph != "" {
		args = append(args, "-filter_complex", graph)
	}
	args = append(args, "-map", vout, "-map", "0:a?")

	args = append(args, "-c:v", out.Codec)
	args = append(args, system.QualityArgs(out.Codec, out.Quality)...)
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", out.FPS),
		"-c:a", out.AudioCodec,
	)
	if strings.EqualFold(filepath.Ext(outputPath), ".mp4") || strings.EqualFold(filepath.Ext(outputPath), ".mov") {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, outputPath)
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxErrTail {
		s = "..." + s[len(s)-maxErrTail:]
	}
	return s
}
