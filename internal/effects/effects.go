package effects

import (
	"fmt"
	"strings"

	"github.com/ivlev/zoomcut/internal/config"
)

// Effect строит цепочку ffmpeg-фильтров для промежуточного сегмента.
type Effect interface {
	GenerateFilter(params config.SegmentParams) string
}

// FitEffect приводит любой ролик к размеру и частоте выходного видео:
// вписывает с сохранением пропорций и добивает полями по центру.
type FitEffect struct{}

func (e *FitEffect) GenerateFilter(p config.SegmentParams) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d",
		p.Width, p.Height, p.Width, p.Height, p.FPS,
	)
}

// WatermarkEffect накладывает надпись (и QR-код) на финальное видео.
type WatermarkEffect struct {
	Watermark config.Watermark
}

const qrMargin = 20

// TextFilter - drawtext снизу по центру с заданной прозрачностью.
// Пустая строка, если текст не задан.
func (e *WatermarkEffect) TextFilter() string {
	w := e.Watermark
	if w.Text == "" {
		return ""
	}
	parts := []string{
		fmt.Sprintf("text='%s'", escapeDrawtext(w.Text)),
		fmt.Sprintf("fontsize=%d", w.FontSize),
		fmt.Sprintf("fontcolor=white@%.2f", w.Opacity),
		"x=(w-text_w)/2",
		"y=h-text_h-10",
	}
	if w.Font != "" {
		parts = append(parts, fmt.Sprintf("font='%s'", escapeDrawtext(w.Font)))
	}
	return "drawtext=" + strings.Join(parts, ":")
}

// Graph возвращает filter_complex и метку выходного видеопотока.
// qrInput - индекс входа с PNG QR-кода или -1. Пустой граф - фильтры не нужны.
func (e *WatermarkEffect) Graph(qrInput int) (graph string, out string) {
	text := e.TextFilter()
	if qrInput < 0 {
		if text == "" {
			return "", "0:v"
		}
		return fmt.Sprintf("[0:v]%s[vout]", text), "[vout]"
	}

	base := "[0:v]"
	var chains []string
	if text != "" {
		chains = append(chains, fmt.Sprintf("[0:v]%s[wm]", text))
		base = "[wm]"
	}
	chains = append(chains,
		fmt.Sprintf("[%d:v]format=rgba,colorchannelmixer=aa=%.2f[qr]", qrInput, e.Watermark.Opacity),
		fmt.Sprintf("%s[qr]overlay=W-w-%d:H-h-%d[vout]", base, qrMargin, qrMargin),
	)
	return strings.Join(chains, ";"), "[vout]"
}

// escapeDrawtext готовит текст для значения в одинарных кавычках:
// внутри кавычек ':' ',' ';' безопасны, а кавычку закрываем и
// экранируем для обоих уровней разбора (граф и опции фильтра).
func escapeDrawtext(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`%`, `\%`,
		`'`, `'\\\''`,
	)
	return r.Replace(s)
}
