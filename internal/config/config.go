package config

// Config описывает одну сборку: два входных ролика, выходной файл,
// правила нарезки и параметры кодирования.
type Config struct {
	IntroPath   string    `yaml:"intro" toml:"intro"`
	MainPath    string    `yaml:"main" toml:"main"`
	OutputVideo string    `yaml:"output" toml:"output"`
	Rules       Ruleset   `yaml:"rules" toml:"rules"`
	Output      Output    `yaml:"encode" toml:"encode"`
	Watermark   Watermark `yaml:"watermark" toml:"watermark"`
	Workers     int       `yaml:"workers" toml:"workers"`
	KeepTemp    bool      `yaml:"keep_temp" toml:"keep_temp"`
}

// Ruleset задает ритм нарезки основного ролика.
type Ruleset struct {
	Preset       string     `yaml:"preset,omitempty" toml:"preset,omitempty"`
	IntroSeconds float64    `yaml:"intro_seconds" toml:"intro_seconds"`
	PlaySeconds  float64    `yaml:"play_seconds" toml:"play_seconds"`
	ZoomSeconds  float64    `yaml:"zoom_seconds" toml:"zoom_seconds"`
	SkipSeconds  float64    `yaml:"skip_seconds" toml:"skip_seconds"`
	Zoom         ZoomPolicy `yaml:"zoom" toml:"zoom"`

	// Seed фиксирует генератор случайных прямоугольников (0 - от времени).
	Seed int64 `yaml:"seed,omitempty" toml:"seed,omitempty"`
}

// ZoomPolicy: Mode "fixed" использует Percent, "alternating" чередует
// Percent и AltPercent по четности номера зум-сегмента.
type ZoomPolicy struct {
	Mode       string `yaml:"mode" toml:"mode"`
	Percent    int    `yaml:"percent" toml:"percent"`
	AltPercent int    `yaml:"alt_percent,omitempty" toml:"alt_percent,omitempty"`
}

// Output - параметры финального кодирования.
type Output struct {
	Codec      string `yaml:"codec" toml:"codec"`
	AudioCodec string `yaml:"audio_codec" toml:"audio_codec"`
	FPS        int    `yaml:"fps" toml:"fps"`
	Quality    int    `yaml:"quality" toml:"quality"`

	// Width/Height = 0 означает размер основного ролика.
	Width  int `yaml:"width,omitempty" toml:"width,omitempty"`
	Height int `yaml:"height,omitempty" toml:"height,omitempty"`

	// SegmentEncoder - кодек промежуточных сегментов ("auto" - автоопределение).
	SegmentEncoder string `yaml:"segment_encoder" toml:"segment_encoder"`
}

// Watermark - надпись снизу по центру и, опционально, QR-код в углу.
type Watermark struct {
	Text      string  `yaml:"text" toml:"text"`
	Opacity   float64 `yaml:"opacity" toml:"opacity"`
	FontSize  int     `yaml:"font_size" toml:"font_size"`
	Font      string  `yaml:"font,omitempty" toml:"font,omitempty"`
	QRPayload string  `yaml:"qr_payload,omitempty" toml:"qr_payload,omitempty"`
	QRSize    int     `yaml:"qr_size,omitempty" toml:"qr_size,omitempty"`
}

// Enabled сообщает, нужно ли накладывать водяной знак.
func (w Watermark) Enabled() bool {
	return w.Text != "" || w.QRPayload != ""
}

// SegmentParams - параметры одного промежуточного сегмента.
type SegmentParams struct {
	Width, Height int
	FPS           int
	Start         float64
	Duration      float64
	Encoder       string
	Quality       int
	SegmentIndex  int
}
