package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// FFprobeOpener открывает ролики через ffprobe, а кадры декодирует ffmpeg.
type FFprobeOpener struct {
	FFprobe string
	FFmpeg  string
}

func NewFFprobeOpener() *FFprobeOpener {
	return &FFprobeOpener{FFprobe: "ffprobe", FFmpeg: "ffmpeg"}
}

type sideData struct {
	Rotation float64 `json:"rotation"`
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
		Tags         struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []sideData `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (o *FFprobeOpener) Open(ctx context.Context, path string) (Clip, error) {
	if err := checkReadable(path); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, o.FFprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_streams", "-show_format",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	info, err := parseProbe(path, out)
	if err != nil {
		return nil, err
	}
	return &FFmpegClip{info: info, ffmpeg: o.FFmpeg}, nil
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrSourceNotFound, path)
	}
	return nil
}

func parseProbe(path string, data []byte) (Info, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: bad output: %w", path, err)
	}

	info := Info{Path: path}
	videoFound := false
	streamDuration := 0.0
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if videoFound {
				continue
			}
			videoFound = true
			info.Width, info.Height = s.Width, s.Height
			// ffmpeg поворачивает кадры при декодировании, размеры
			// должны совпадать с тем, что придет из пайпа.
			if quarterTurn(streamRotation(s.Tags.Rotate, s.SideDataList)) {
				info.Width, info.Height = info.Height, info.Width
			}
			info.FrameRate = parseRate(s.AvgFrameRate)
			if info.FrameRate <= 0 {
				info.FrameRate = parseRate(s.RFrameRate)
			}
			streamDuration, _ = strconv.ParseFloat(s.Duration, 64)
		case "audio":
			info.Audio = true
		}
	}
	if !videoFound {
		return Info{}, fmt.Errorf("ffprobe %s: no video stream", path)
	}

	info.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	if info.Duration <= 0 {
		info.Duration = streamDuration
	}
	if info.Duration <= 0 || info.FrameRate <= 0 || info.Width <= 0 || info.Height <= 0 {
		return Info{}, fmt.Errorf("ffprobe %s: incomplete metadata (%gs, %g fps, %dx%d)",
			path, info.Duration, info.FrameRate, info.Width, info.Height)
	}
	return info, nil
}

// streamRotation возвращает угол поворота из display matrix, а для
// старых файлов из тега rotate.
func streamRotation(tag string, side []sideData) int {
	for _, sd := range side {
		if sd.Rotation != 0 {
			return int(math.Round(sd.Rotation))
		}
	}
	v, err := strconv.Atoi(strings.TrimSpace(tag))
	if err != nil {
		return 0
	}
	return v
}

func quarterTurn(deg int) bool {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg == 90 || deg == 270
}

// parseRate разбирает дробь вида "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// FFmpegClip реализует Clip поверх файла и внешнего ffmpeg.
type FFmpegClip struct {
	info   Info
	ffmpeg string
	closed bool
}

func (c *FFmpegClip) Info() Info         { return c.info }
func (c *FFmpegClip) Path() string       { return c.info.Path }
func (c *FFmpegClip) Duration() float64  { return c.info.Duration }
func (c *FFmpegClip) FrameRate() float64 { return c.info.FrameRate }
func (c *FFmpegClip) Size() (int, int)   { return c.info.Width, c.info.Height }
func (c *FFmpegClip) HasAudio() bool     { return c.info.Audio }

func (c *FFmpegClip) Frames(ctx context.Context, start, end float64, fps int) (FrameReader, error) {
	if c.closed {
		return nil, errors.New("clip is closed")
	}
	if end <= start {
		return nil, fmt.Errorf("empty range [%g, %g)", start, end)
	}

	cmd := exec.CommandContext(ctx, c.ffmpeg,
		"-v", "error",
		"-ss", fmt.Sprintf("%f", start),
		"-i", c.info.Path,
		"-t", fmt.Sprintf("%f", end-start),
		"-an",
		"-vf", decodeFilter(c.info, fps),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	return &ffmpegFrameReader{
		cmd:       cmd,
		stdout:    stdout,
		stderr:    stderr,
		frameSize: c.info.Width * c.info.Height * 4,
	}, nil
}

// decodeFilter фиксирует размер кадра, чтобы раскладка байтов в пайпе
// всегда совпадала с Info.
func decodeFilter(info Info, fps int) string {
	return fmt.Sprintf("fps=%d,scale=%d:%d", fps, info.Width, info.Height)
}

// Close освобождает ролик. Процессы декодирования живут только
// внутри FrameReader, поэтому здесь достаточно пометить ролик закрытым.
func (c *FFmpegClip) Close() error {
	c.closed = true
	return nil
}

type ffmpegFrameReader struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    *bytes.Buffer
	frameSize int
	done      bool
}

func (r *ffmpegFrameReader) Next(dst *image.RGBA) error {
	if r.done {
		return io.EOF
	}
	if len(dst.Pix) < r.frameSize {
		return fmt.Errorf("frame buffer too small: %d < %d", len(dst.Pix), r.frameSize)
	}

	_, err := io.ReadFull(r.stdout, dst.Pix[:r.frameSize])
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		r.done = true
		if werr := r.wait(); werr != nil {
			return werr
		}
		return io.EOF
	}
	return fmt.Errorf("read frame: %w", err)
}

func (r *ffmpegFrameReader) wait() error {
	if r.cmd == nil {
		return nil
	}
	err := r.cmd.Wait()
	r.cmd = nil
	if err != nil {
		return fmt.Errorf("ffmpeg decode error: %w: %s", err, strings.TrimSpace(r.stderr.String()))
	}
	return nil
}

func (r *ffmpegFrameReader) Close() error {
	r.done = true
	if r.cmd == nil {
		return nil
	}
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	_ = r.cmd.Wait()
	r.cmd = nil
	return nil
}
