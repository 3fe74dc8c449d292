package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/zoomcut/internal/config"
)

// ruleFlags переопределяют правила нарезки из файла конфигурации.
// Применяются только явно заданные флаги.
type ruleFlags struct {
	preset      string
	intro       float64
	play        float64
	zoom        float64
	skip        float64
	zoomMode    string
	zoomPercent int
	altPercent  int
	seed        int64
}

func (f *ruleFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.preset, "preset", "", "Пресет ритма: classic (16/45/5/10) или short (5/15/5/3)")
	fl.Float64Var(&f.intro, "intro-seconds", 0, "Длительность интро (сек)")
	fl.Float64Var(&f.play, "play", 0, "Окно обычного воспроизведения (сек)")
	fl.Float64Var(&f.zoom, "zoom", 0, "Окно зума (сек), 0 - без зумов")
	fl.Float64Var(&f.skip, "skip", 0, "Пропуск (сек), 0 - без пропусков")
	fl.StringVar(&f.zoomMode, "zoom-mode", "", "Режим зума: fixed или alternating")
	fl.IntVar(&f.zoomPercent, "zoom-percent", 0, "Зум в процентах (кадр увеличивается в 1+p/100 раз)")
	fl.IntVar(&f.altPercent, "alt-zoom-percent", 0, "Второй процент для режима alternating")
	fl.Int64Var(&f.seed, "seed", 0, "Зерно случайных областей зума (0 - от времени)")
}

func (f *ruleFlags) apply(cmd *cobra.Command, r *config.Ruleset) error {
	fl := cmd.Flags()
	if fl.Changed("preset") {
		if !config.IsPreset(f.preset) {
			return fmt.Errorf("неизвестный пресет %q", f.preset)
		}
		seed := r.Seed
		*r = config.PresetRules(f.preset)
		r.Seed = seed
	}
	if fl.Changed("intro-seconds") {
		r.IntroSeconds = f.intro
	}
	if fl.Changed("play") {
		r.PlaySeconds = f.play
	}
	if fl.Changed("zoom") {
		r.ZoomSeconds = f.zoom
	}
	if fl.Changed("skip") {
		r.SkipSeconds = f.skip
	}
	if fl.Changed("zoom-percent") {
		r.Zoom.Percent = f.zoomPercent
	}
	if fl.Changed("alt-zoom-percent") {
		r.Zoom.AltPercent = f.altPercent
		r.Zoom.Mode = config.ZoomModeAlternating
	}
	if fl.Changed("zoom-mode") {
		r.Zoom.Mode = f.zoomMode
	}
	if fl.Changed("seed") {
		r.Seed = f.seed
	}
	return nil
}

// outputFlags - входы, выход и параметры кодирования.
type outputFlags struct {
	intro          string
	main           string
	output         string
	fps            int
	codec          string
	audioCodec     string
	quality        int
	width          int
	height         int
	segmentEncoder string
	watermark      string
	opacity        float64
	qr             string
	workers        int
	keepTemp       bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.intro, "intro", "", "Ролик, из начала которого берется интро")
	fl.StringVar(&f.main, "main", "", "Основной ролик")
	fl.StringVarP(&f.output, "output", "o", "", "Итоговый файл (без расширения будет .mp4)")
	fl.IntVar(&f.fps, "fps", 0, "FPS итогового видео")
	fl.StringVar(&f.codec, "codec", "", "Видеокодек итогового файла")
	fl.StringVar(&f.audioCodec, "audio-codec", "", "Аудиокодек итогового файла")
	fl.IntVar(&f.quality, "quality", 0, "Качество (x264: CRF, VideoToolbox: битрейт = Q*100кбит/с)")
	fl.IntVar(&f.width, "width", 0, "Ширина (0 - как у основного ролика)")
	fl.IntVar(&f.height, "height", 0, "Высота (0 - как у основного ролика)")
	fl.StringVar(&f.segmentEncoder, "segment-encoder", "", "Кодек промежуточных сегментов, auto - аппаратный, если есть")
	fl.StringVar(&f.watermark, "watermark", "", "Текст водяного знака (пустая строка - без надписи)")
	fl.Float64Var(&f.opacity, "watermark-opacity", 0, "Прозрачность водяного знака [0,1]")
	fl.StringVar(&f.qr, "qr", "", "Данные для QR-кода в правом нижнем углу")
	fl.IntVar(&f.workers, "workers", 0, "Потоки обработки кадров зума (0 - все ядра)")
	fl.BoolVar(&f.keepTemp, "keep-temp", false, "Не удалять промежуточные сегменты")
}

func (f *outputFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	set := func(name string, fn func()) {
		if fl.Changed(name) {
			fn()
		}
	}
	set("intro", func() { cfg.IntroPath = f.intro })
	set("main", func() { cfg.MainPath = f.main })
	set("output", func() { cfg.OutputVideo = config.NormalizeOutputPath(f.output) })
	set("fps", func() { cfg.Output.FPS = f.fps })
	set("codec", func() { cfg.Output.Codec = f.codec })
	set("audio-codec", func() { cfg.Output.AudioCodec = f.audioCodec })
	set("quality", func() { cfg.Output.Quality = f.quality })
	set("width", func() { cfg.Output.Width = f.width })
	set("height", func() { cfg.Output.Height = f.height })
	set("segment-encoder", func() { cfg.Output.SegmentEncoder = f.segmentEncoder })
	set("watermark", func() { cfg.Watermark.Text = f.watermark })
	set("watermark-opacity", func() { cfg.Watermark.Opacity = f.opacity })
	set("qr", func() { cfg.Watermark.QRPayload = f.qr })
	set("workers", func() { cfg.Workers = f.workers })
	set("keep-temp", func() { cfg.KeepTemp = f.keepTemp })
}
