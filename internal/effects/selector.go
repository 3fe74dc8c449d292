package effects

import (
	"github.com/ivlev/zoomcut/internal/config"
)

// ZoomSelector выдает процент зума для k-го зум-сегмента (с нуля).
type ZoomSelector interface {
	Percent(k int) int
}

// FixedZoom - одинаковый зум для всех сегментов.
type FixedZoom int

func (z FixedZoom) Percent(int) int { return int(z) }

// AlternatingZoom чередует значения по четности номера сегмента.
type AlternatingZoom struct {
	Even, Odd int
}

func (z AlternatingZoom) Percent(k int) int {
	if k%2 == 0 {
		return z.Even
	}
	return z.Odd
}

// SelectorFor строит селектор по политике из конфигурации.
func SelectorFor(p config.ZoomPolicy) ZoomSelector {
	if p.Mode == config.ZoomModeAlternating {
		return AlternatingZoom{Even: p.Percent, Odd: p.AltPercent}
	}
	return FixedZoom(p.Percent)
}
