package system

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameWorkers(t *testing.T) {
	frame := 1920 * 1080 * 4

	tests := []struct {
		name      string
		stats     HostStats
		requested int
		want      int
	}{
		{"all cores", HostStats{LogicalCPUs: 8}, 0, 8},
		{"requested fewer", HostStats{LogicalCPUs: 8}, 3, 3},
		{"requested more", HostStats{LogicalCPUs: 4}, 16, 4},
		{"memory bound", HostStats{LogicalCPUs: 16, AvailableBytes: uint64(frame) * 2 * 4 * 5}, 0, 5},
		{"never zero", HostStats{LogicalCPUs: 8, AvailableBytes: 1024}, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FrameWorkers(tt.stats, tt.requested, frame))
		})
	}
}

func TestReadHostStats(t *testing.T) {
	stats := ReadHostStats(context.Background())
	assert.GreaterOrEqual(t, stats.LogicalCPUs, 1)
}

func TestBestH264Encoder(t *testing.T) {
	list := func(out string, err error) EncoderLister {
		return func(context.Context) (string, error) { return out, err }
	}
	ctx := context.Background()

	assert.Equal(t, "h264_nvenc", bestH264Encoder(ctx, list(" V....D h264_nvenc  NVIDIA NVENC", nil)))
	assert.Equal(t, "h264_videotoolbox", bestH264Encoder(ctx, list("h264_nvenc h264_videotoolbox", nil)))
	assert.Equal(t, "libx264", bestH264Encoder(ctx, list("libx264", nil)))
	assert.Equal(t, "libx264", bestH264Encoder(ctx, list("", errors.New("no ffmpeg"))))

	assert.Equal(t, "libx265", ResolveSegmentEncoder(ctx, "libx265"))
}

func TestQualityArgs(t *testing.T) {
	assert.Equal(t, []string{"-b:v", "7500k"}, QualityArgs("h264_videotoolbox", 75))
	assert.Equal(t, []string{"-cq", "28"}, QualityArgs("h264_nvenc", 28))
	assert.Equal(t, []string{"-crf", "23", "-preset", "medium"}, QualityArgs("libx264", 23))
}

func TestCheckToolsMissing(t *testing.T) {
	err := CheckTools("zoomcut-definitely-missing-tool")
	assert.ErrorContains(t, err, "zoomcut-definitely-missing-tool")
}

func TestFramePool(t *testing.T) {
	pool := NewFramePool()

	img := pool.Get(32, 18)
	assert.Equal(t, image.Rect(0, 0, 32, 18), img.Rect)
	assert.Len(t, img.Pix, 32*18*4)
	pool.Put(img)

	again := pool.Get(32, 18)
	assert.Equal(t, img.Rect, again.Rect)

	other := pool.Get(16, 9)
	assert.Equal(t, image.Rect(0, 0, 16, 9), other.Rect)

	pool.Put(nil)
	pool.Put(image.NewRGBA(image.Rect(1, 1, 5, 5)))
}
