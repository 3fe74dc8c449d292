package director

import (
	"fmt"
	"math"
	"strings"

	"github.com/ivlev/zoomcut/internal/config"
)

// SegmentKind describes what happens to a window of the timeline.
type SegmentKind int

const (
	KindIntro SegmentKind = iota
	KindPlay
	KindZoom
	KindSkip
)

var kindNames = []string{"intro", "play", "zoom", "skip"}

func (k SegmentKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind is the inverse of String.
func ParseKind(s string) (SegmentKind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return SegmentKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown segment kind %q", s)
}

func (k SegmentKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

func (k *SegmentKind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Entry is one planned window. Entries are never mutated after planning.
type Entry struct {
	Index       int         `yaml:"index"`
	Kind        SegmentKind `yaml:"kind"`
	Start       float64     `yaml:"start"`
	End         float64     `yaml:"end"`
	ZoomPercent *int        `yaml:"zoom_percent,omitempty"`
}

// Duration in seconds.
func (e Entry) Duration() float64 {
	return e.End - e.Start
}

// FrameCount is the number of source frames the window consumes.
func (e Entry) FrameCount(fps float64) int {
	return int(math.Round(e.Duration() * fps))
}

// Zoom returns the zoom percent and whether the entry is a zoom window.
func (e Entry) Zoom() (int, bool) {
	if e.Kind != KindZoom || e.ZoomPercent == nil {
		return 0, false
	}
	return *e.ZoomPercent, true
}

func (e Entry) String() string {
	s := fmt.Sprintf("%s[%g,%g)", e.Kind, e.Start, e.End)
	if pct, ok := e.Zoom(); ok {
		s += fmt.Sprintf("@%d%%", pct)
	}
	return s
}

// Plan is the ordered segment list for one source clip.
type Plan struct {
	Version        string         `yaml:"version"`
	SourceDuration float64        `yaml:"source_duration"`
	Rules          config.Ruleset `yaml:"rules"`
	Intro          *Entry         `yaml:"intro,omitempty"`
	Entries        []Entry        `yaml:"entries"`
}

// TotalFrames is the progress denominator: all frames of the main clip.
func (p *Plan) TotalFrames(fps float64) int {
	return int(fps * p.SourceDuration)
}

// Renderable returns the entries that produce output (everything but skips).
func (p *Plan) Renderable() []Entry {
	out := make([]Entry, 0, len(p.Entries))
	for _, e := range p.Entries {
		if e.Kind != KindSkip {
			out = append(out, e)
		}
	}
	return out
}

// Coverage sums the spans of all entries, skips included.
func (p *Plan) Coverage() float64 {
	sum := 0.0
	for _, e := range p.Entries {
		sum += e.Duration()
	}
	return sum
}

// OutputDuration is the length of the rendered timeline including the intro.
func (p *Plan) OutputDuration() float64 {
	sum := 0.0
	if p.Intro != nil {
		sum += p.Intro.Duration()
	}
	for _, e := range p.Renderable() {
		sum += e.Duration()
	}
	return sum
}

// Count returns how many entries of the given kind the plan has.
func (p *Plan) Count(kind SegmentKind) int {
	n := 0
	for _, e := range p.Entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
