package effects

import (
	"fmt"
	"image"
	"math"
	"math/rand"
)

// ZoomRect - область кадра, которая растягивается на весь кадр.
type ZoomRect struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"w"`
	Height int `yaml:"h"`
}

func (r ZoomRect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r ZoomRect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Fits сообщает, лежит ли прямоугольник внутри кадра w x h.
func (r ZoomRect) Fits(w, h int) bool {
	return r.X >= 0 && r.Y >= 0 && r.Width > 0 && r.Height > 0 &&
		r.X+r.Width <= w && r.Y+r.Height <= h
}

// ZoomFactor переводит проценты зума в коэффициент масштаба.
// Принятое соглашение: кадр увеличивается в (1 + pct/100) раз и обрезается
// обратно до исходного размера, т.е. вырезается область W/factor x H/factor.
// 50% дает область 2/3 кадра, 100% - половину.
func ZoomFactor(percent int) float64 {
	return 1 + float64(percent)/100
}

// CropSize возвращает размер вырезаемой области для кадра w x h.
func CropSize(w, h, percent int) (int, int) {
	factor := ZoomFactor(percent)
	cw := int(math.Floor(float64(w) / factor))
	ch := int(math.Floor(float64(h) / factor))
	return clamp(cw, 1, w), clamp(ch, 1, h)
}

// ChooseRect выбирает случайную область зума внутри кадра w x h.
// Левый верхний угол равномерно распределен по [0, w-cw] x [0, h-ch];
// при нулевом запасе координата прижимается к 0.
func ChooseRect(rng *rand.Rand, w, h, percent int) ZoomRect {
	cw, ch := CropSize(w, h, percent)
	return ZoomRect{
		X:      randomOffset(rng, w-cw),
		Y:      randomOffset(rng, h-ch),
		Width:  cw,
		Height: ch,
	}
}

func randomOffset(rng *rand.Rand, span int) int {
	if span <= 0 {
		return 0
	}
	return rng.Intn(span + 1)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
