package video

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/zoomcut/internal/config"
	"github.com/ivlev/zoomcut/internal/effects"
	"github.com/ivlev/zoomcut/internal/system"
)

// fakeFrames отдает count кадров, первый байт кадра i равен i+1.
type fakeFrames struct {
	count   int
	failAt  int
	served  int
	closed  bool
	failErr error
}

func (f *fakeFrames) Next(dst *image.RGBA) error {
	if f.failErr != nil && f.served == f.failAt {
		return f.failErr
	}
	if f.served >= f.count {
		return io.EOF
	}
	for i := range dst.Pix {
		dst.Pix[i] = 0
	}
	dst.Pix[0] = byte(f.served + 1)
	f.served++
	return nil
}

func (f *fakeFrames) Close() error {
	f.closed = true
	return nil
}

type copyTransform struct{ w, h int }

func (c copyTransform) Apply(dst, src *image.RGBA) { copy(dst.Pix, src.Pix) }
func (c copyTransform) OutputSize() (int, int)     { return c.w, c.h }

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func frameMarks(t *testing.T, raw []byte, frameSize int) []byte {
	t.Helper()
	require.Zero(t, len(raw)%frameSize, "partial frame written")
	var marks []byte
	for off := 0; off < len(raw); off += frameSize {
		marks = append(marks, raw[off])
	}
	return marks
}

func TestPumpFramesKeepsOrder(t *testing.T) {
	var out bytes.Buffer
	frames := &fakeFrames{count: 20}

	err := pumpFrames(context.Background(), frames, copyTransform{4, 2}, &out, 4, 2, 20, 4)
	require.NoError(t, err)

	marks := frameMarks(t, out.Bytes(), 4*2*4)
	require.Len(t, marks, 20)
	for i, m := range marks {
		assert.Equal(t, byte(i+1), m, "frame %d out of order", i)
	}
}

func TestPumpFramesPadsWithLastFrame(t *testing.T) {
	var out bytes.Buffer
	frames := &fakeFrames{count: 5}

	err := pumpFrames(context.Background(), frames, copyTransform{2, 2}, &out, 2, 2, 8, 2)
	require.NoError(t, err)

	assert.Equal(t, []byte{1, 2, 3, 4, 5, 5, 5, 5}, frameMarks(t, out.Bytes(), 2*2*4))
}

func TestPumpFramesTruncates(t *testing.T) {
	var out bytes.Buffer
	frames := &fakeFrames{count: 10}

	err := pumpFrames(context.Background(), frames, copyTransform{2, 2}, &out, 2, 2, 4, 3)
	require.NoError(t, err)

	assert.Equal(t, []byte{1, 2, 3, 4}, frameMarks(t, out.Bytes(), 2*2*4))
	assert.Equal(t, 4, frames.served)
}

func TestPumpFramesNoFrames(t *testing.T) {
	var out bytes.Buffer
	err := pumpFrames(context.Background(), &fakeFrames{}, copyTransform{2, 2}, &out, 2, 2, 3, 1)
	assert.EqualError(t, err, "no frames decoded")
	assert.Zero(t, out.Len())
}

func TestPumpFramesDecodeError(t *testing.T) {
	var out bytes.Buffer
	frames := &fakeFrames{count: 10, failAt: 2, failErr: errors.New("corrupt packet")}

	err := pumpFrames(context.Background(), frames, copyTransform{2, 2}, &out, 2, 2, 10, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode frame 2")
	assert.Contains(t, err.Error(), "corrupt packet")
}

func TestPumpFramesWriteError(t *testing.T) {
	err := pumpFrames(context.Background(), &fakeFrames{count: 10}, copyTransform{2, 2}, failingWriter{}, 2, 2, 10, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestPumpFramesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := pumpFrames(ctx, &fakeFrames{count: 100}, copyTransform{2, 2}, &out, 2, 2, 100, 2)
	assert.Error(t, err)
}

func TestPumpFramesZoomTransform(t *testing.T) {
	var out bytes.Buffer
	rect := effects.ZoomRect{X: 2, Y: 1, Width: 8, Height: 4}
	transform := effects.NewZoomTransform(rect, 16, 8)

	err := pumpFrames(context.Background(), &fakeFrames{count: 3}, transform, &out, 16, 8, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 3*16*8*4, out.Len())
}

func TestTargetFrames(t *testing.T) {
	assert.Equal(t, 120, TargetFrames(5, 24))
	assert.Equal(t, 36, TargetFrames(1.5, 24))
	assert.Equal(t, 13, TargetFrames(0.52, 24))
	assert.Equal(t, 1, TargetFrames(0.001, 24))
}

func testParams() config.SegmentParams {
	return config.SegmentParams{
		Width: 1280, Height: 720, FPS: 24,
		Start: 15, Duration: 5,
		Encoder: "libx264", Quality: 23,
	}
}

func TestBuildExtractArgsWithAudio(t *testing.T) {
	p := testParams()
	args := buildExtractArgs("main.mp4", true, "FILTER", "s1.mp4", p)
	line := strings.Join(args, " ")

	assert.Contains(t, line, "-ss 15.000000 -t 5.000000 -i main.mp4")
	assert.Contains(t, line, "-map 0:v:0 -map 0:a:0")
	assert.Contains(t, line, "-vf FILTER")
	assert.Contains(t, line, "-af apad")
	assert.Contains(t, line, "-crf 23 -preset medium")
	assert.NotContains(t, line, "anullsrc")
	assert.Equal(t, "s1.mp4", args[len(args)-1])
}

func TestBuildExtractArgsSilentSource(t *testing.T) {
	args := buildExtractArgs("intro.mp4", false, "FILTER", "s0.mp4", testParams())
	line := strings.Join(args, " ")

	assert.Contains(t, line, "-f lavfi -t 5.000000 -i anullsrc=channel_layout=stereo:sample_rate=48000")
	assert.Contains(t, line, "-map 1:a:0")
	assert.NotContains(t, line, "apad")
	assert.Contains(t, line, "-c:a aac -ar 48000 -ac 2")
}

func TestBuildZoomArgs(t *testing.T) {
	p := testParams()

	line := strings.Join(buildZoomArgs("main.mp4", true, "s2.mp4", p), " ")
	assert.Contains(t, line, "-f rawvideo -pixel_format rgba -video_size 1280x720 -framerate 24 -i -")
	assert.Contains(t, line, "-ss 15.000000 -t 5.000000 -i main.mp4")
	assert.Contains(t, line, "-map 0:v:0 -map 1:a:0")
	assert.Contains(t, line, "-pix_fmt yuv420p -r 24")

	silent := strings.Join(buildZoomArgs("main.mp4", false, "s2.mp4", p), " ")
	assert.Contains(t, silent, "anullsrc")
	assert.NotContains(t, silent, "main.mp4")
	assert.Contains(t, silent, "-map 1:a:0")
}

func TestBuildWriteArgs(t *testing.T) {
	out := config.Output{Codec: "libx264", AudioCodec: "aac", FPS: 24, Quality: 20}

	plain := strings.Join(buildWriteArgs("merged.mp4", "", "final.mp4", out, config.Watermark{}), " ")
	assert.NotContains(t, plain, "-filter_complex")
	assert.Contains(t, plain, "-map 0:v -map 0:a?")
	assert.Contains(t, plain, "-movflags +faststart")

	wm := config.Watermark{Text: "VIDHUB_AFRO", Opacity: 0.5, FontSize: 40}
	args := buildWriteArgs("merged.mp4", "", "final.mkv", out, wm)
	line := strings.Join(args, " ")
	assert.Contains(t, line, "-filter_complex [0:v]drawtext=text='VIDHUB_AFRO'")
	assert.Contains(t, line, "-map [vout]")
	assert.NotContains(t, line, "faststart")
	assert.Equal(t, "final.mkv", args[len(args)-1])

	wm.QRPayload = "https://example.com"
	qr := strings.Join(buildWriteArgs("merged.mp4", "/tmp/qr.png", "final.mp4", out, wm), " ")
	assert.Contains(t, qr, "-i merged.mp4 -i /tmp/qr.png")
	assert.Contains(t, qr, "[1:v]format=rgba")
	assert.Contains(t, qr, "overlay=W-w-20:H-h-20[vout]")
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "inputs.txt")
	segs := []string{filepath.Join(dir, "s0.mp4"), filepath.Join(dir, "it's.mp4")}

	require.NoError(t, writeConcatList(list, segs))
	data, err := os.ReadFile(list)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "file '"+segs[0]+"'", lines[0])
	assert.Equal(t, "file '"+filepath.Join(dir, `it'\''s.mp4`)+"'", lines[1])
}

func TestConcatenateEmpty(t *testing.T) {
	e := NewFFmpegEncoder(1, system.HostStats{LogicalCPUs: 2}, nil)
	_, err := e.Concatenate(context.Background(), nil, t.TempDir())
	assert.Error(t, err)
}

func TestEncodeError(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &EncodeError{Op: "concat", Err: inner, Output: "Invalid data"}

	assert.Equal(t, "ffmpeg concat error: exit status 1, output: Invalid data", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "ffmpeg write error: exit status 1", (&EncodeError{Op: "write", Err: inner}).Error())
}

func TestTail(t *testing.T) {
	long := strings.Repeat("x", maxErrTail+10)
	got := tail([]byte(long + "\n"))
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.Len(t, got, maxErrTail+3)
	assert.Equal(t, "short", tail([]byte("  short \n")))
}
