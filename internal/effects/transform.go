package effects

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Lanczos3 - ядро Ланцоша с окном 3, качественный ресемплинг для зума.
var Lanczos3 = &draw.Kernel{Support: 3, At: lanczos3}

func lanczos3(t float64) float64 {
	if t < 0 {
		t = -t
	}
	if t < 1e-9 {
		return 1
	}
	if t >= 3 {
		return 0
	}
	pt := math.Pi * t
	return 3 * math.Sin(pt) * math.Sin(pt/3) / (pt * pt)
}

// FrameTransform преобразует один кадр. Реализации не хранят состояния
// между кадрами: результат для кадра i зависит только от кадра i.
type FrameTransform interface {
	Apply(dst, src *image.RGBA)
	OutputSize() (width, height int)
}

// ZoomTransform вырезает Rect и вписывает его в кадр Width x Height с
// сохранением пропорций, остаток заливается черным (как scale+pad в FitEffect).
// Прямоугольник фиксирован на весь сегмент.
type ZoomTransform struct {
	Rect          ZoomRect
	Width, Height int
	scaler        draw.Scaler
}

// NewZoomTransform заранее считает веса ядра для пары размеров.
// Scaler из x/image/draw безопасен для параллельного использования.
func NewZoomTransform(rect ZoomRect, width, height int) *ZoomTransform {
	z := &ZoomTransform{Rect: rect, Width: width, Height: height}
	inner := z.Inner()
	z.scaler = Lanczos3.NewScaler(inner.Dx(), inner.Dy(), rect.Width, rect.Height)
	return z
}

func (z *ZoomTransform) OutputSize() (int, int) {
	return z.Width, z.Height
}

// Inner - область кадра, куда попадает вырезанный прямоугольник.
// Совпадает со всем кадром, если пропорции равны.
func (z *ZoomTransform) Inner() image.Rectangle {
	return FitRect(z.Rect.Width, z.Rect.Height, z.Width, z.Height)
}

// FitRect вписывает w x h в бокс bw x bh по центру, не меньше 1x1.
func FitRect(w, h, bw, bh int) image.Rectangle {
	if w <= 0 || h <= 0 {
		return image.Rect(0, 0, bw, bh)
	}
	iw, ih := bw, bh
	if w*bh > h*bw {
		ih = int(math.Round(float64(h) * float64(bw) / float64(w)))
	} else {
		iw = int(math.Round(float64(w) * float64(bh) / float64(h)))
	}
	iw = max(1, min(iw, bw))
	ih = max(1, min(ih, bh))
	x0, y0 := (bw-iw)/2, (bh-ih)/2
	return image.Rect(x0, y0, x0+iw, y0+ih)
}

func (z *ZoomTransform) Apply(dst, src *image.RGBA) {
	sr := z.Rect.Rectangle().Add(src.Bounds().Min)
	full := image.Rect(0, 0, z.Width, z.Height)
	inner := z.Inner()
	if inner != full {
		// буферы из пула: поля заливаются на каждом кадре
		draw.Draw(dst, full.Add(dst.Bounds().Min), image.Black, image.Point{}, draw.Src)
	}
	dr := inner.Add(dst.Bounds().Min)
	if z.scaler != nil {
		z.scaler.Scale(dst, dr, src, sr, draw.Src, nil)
		return
	}
	Lanczos3.Scale(dst, dr, src, sr, draw.Src, nil)
}
