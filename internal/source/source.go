package source

import (
	"context"
	"errors"
	"image"
)

// ErrSourceNotFound - входной файл отсутствует или недоступен для чтения.
var ErrSourceNotFound = errors.New("source video not found")

// Clip - открытый исходный ролик. Неизменяем после открытия.
type Clip interface {
	Path() string
	Duration() float64
	FrameRate() float64
	Size() (width, height int)
	HasAudio() bool
	// Frames декодирует диапазон [start, end) в RGBA с частотой fps.
	Frames(ctx context.Context, start, end float64, fps int) (FrameReader, error)
	Close() error
}

// FrameReader отдает кадры по одному. Next возвращает io.EOF после
// последнего кадра диапазона.
type FrameReader interface {
	Next(dst *image.RGBA) error
	Close() error
}

// Opener - декодер, умеющий открывать ролики по пути.
type Opener interface {
	Open(ctx context.Context, path string) (Clip, error)
}

// Info - метаданные ролика, полученные при открытии.
type Info struct {
	Path      string
	Duration  float64
	FrameRate float64
	Width     int
	Height    int
	Audio     bool
}

// Frames - общее число кадров ролика (как int(fps*duration) в исходной программе).
func (i Info) Frames() int {
	return int(i.FrameRate * i.Duration)
}
