package system

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// InitResourceLimits поднимает лимит открытых файлов: каждый сегмент
// держит несколько пайпов ffmpeg одновременно.
func InitResourceLimits(logger hclog.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("cannot read open file limit", "error", err)
		return
	}

	want := uint64(2048)
	if rLimit.Cur >= want {
		return
	}
	rLimit.Cur = want
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("cannot raise open file limit", "error", err)
		return
	}
	logger.Debug("open file limit raised", "limit", rLimit.Cur)
}

// CheckTools убеждается, что ffmpeg и ffprobe доступны в PATH.
func CheckTools(tools ...string) error {
	if len(tools) == 0 {
		tools = []string{"ffmpeg", "ffprobe"}
	}
	var missing []string
	for _, t := range tools {
		if _, err := exec.LookPath(t); err != nil {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("не найдены в PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

// EncoderLister возвращает вывод `ffmpeg -encoders`.
type EncoderLister func(ctx context.Context) (string, error)

func ffmpegEncoders(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	return string(out), err
}

// GetBestH264Encoder выбирает аппаратный H.264 кодек, если он есть.
// Приоритеты:
// 1. MacOS (VideoToolbox)
// 2. NVIDIA (NVENC)
// 3. Software (libx264)
func GetBestH264Encoder(ctx context.Context) string {
	return bestH264Encoder(ctx, ffmpegEncoders)
}

func bestH264Encoder(ctx context.Context, list EncoderLister) string {
	out, err := list(ctx)
	if err != nil {
		return "libx264"
	}
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(out, name) {
			return name
		}
	}
	return "libx264"
}

// ResolveSegmentEncoder раскрывает "auto" в конкретный кодек.
func ResolveSegmentEncoder(ctx context.Context, name string) string {
	if name == "" || name == "auto" {
		return GetBestH264Encoder(ctx)
	}
	return name
}

// QualityArgs - параметры качества в зависимости от энкодера.
func QualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox часто не поддерживает -q:v напрямую. Используем битрейт.
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default: // libx264 и прочие x264-совместимые
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

// HostStats - то, что нужно для выбора числа воркеров.
type HostStats struct {
	LogicalCPUs    int
	AvailableBytes uint64
}

// ReadHostStats читает число ядер и свободную память через gopsutil.
// При ошибке подставляет runtime.NumCPU и 0 (без ограничения по памяти).
func ReadHostStats(ctx context.Context) HostStats {
	stats := HostStats{LogicalCPUs: runtime.NumCPU()}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		stats.LogicalCPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.AvailableBytes = vm.Available
	}
	return stats
}

// FrameWorkers ограничивает параллелизм зума: не больше requested (0 - все
// ядра) и так, чтобы пары кадров (вход + выход) занимали не больше
// четверти свободной памяти.
func FrameWorkers(stats HostStats, requested, frameBytes int) int {
	n := requested
	if n <= 0 || n > stats.LogicalCPUs {
		n = stats.LogicalCPUs
	}
	if stats.AvailableBytes > 0 && frameBytes > 0 {
		perWorker := uint64(frameBytes) * 2
		budget := stats.AvailableBytes / 4
		if limit := int(budget / perWorker); limit < n {
			n = limit
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}
