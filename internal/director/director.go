package director

import (
	"fmt"
	"math"

	"github.com/ivlev/zoomcut/internal/config"
	"github.com/ivlev/zoomcut/internal/effects"
)

const planVersion = "1.0"

// Director walks a clip's timeline and emits play/zoom/skip windows.
type Director struct {
	Rules    config.Ruleset
	Selector effects.ZoomSelector
}

// NewDirector creates a Director whose zoom percents follow the ruleset policy.
func NewDirector(rules config.Ruleset) *Director {
	return &Director{
		Rules:    rules,
		Selector: effects.SelectorFor(rules.Zoom),
	}
}

// BuildPlan is a shorthand for NewDirector(rules).Plan(duration).
func BuildPlan(duration float64, rules config.Ruleset) (*Plan, error) {
	return NewDirector(rules).Plan(duration)
}

// Plan produces the segment list for a source of the given duration.
//
// Starting at t=0 it repeats play, zoom, skip. Play and zoom windows are
// clamped to the remaining duration; a skip advances t by the full skip
// length even past the end, which simply terminates the loop. Phases with a
// zero length are left out so no empty windows are emitted.
func (d *Director) Plan(duration float64) (*Plan, error) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return nil, fmt.Errorf("invalid source duration %v", duration)
	}
	if err := d.Rules.Validate(); err != nil {
		return nil, err
	}
	selector := d.Selector
	if selector == nil {
		selector = effects.SelectorFor(d.Rules.Zoom)
	}

	plan := &Plan{
		Version:        planVersion,
		SourceDuration: duration,
		Rules:          d.Rules,
	}

	emit := func(kind SegmentKind, start, end float64) *Entry {
		plan.Entries = append(plan.Entries, Entry{
			Index: len(plan.Entries),
			Kind:  kind,
			Start: start,
			End:   end,
		})
		return &plan.Entries[len(plan.Entries)-1]
	}

	t := 0.0
	zooms := 0
	for t < duration {
		end := math.Min(t+d.Rules.PlaySeconds, duration)
		emit(KindPlay, t, end)
		t = end
		if t >= duration {
			break
		}

		if d.Rules.ZoomSeconds > 0 {
			end = math.Min(t+d.Rules.ZoomSeconds, duration)
			pct := selector.Percent(zooms)
			emit(KindZoom, t, end).ZoomPercent = &pct
			zooms++
			t = end
			if t >= duration {
				break
			}
		}

		if d.Rules.SkipSeconds > 0 {
			emit(KindSkip, t, math.Min(t+d.Rules.SkipSeconds, duration))
			t += d.Rules.SkipSeconds
		}
	}

	return plan, nil
}

// IntroEntry describes the intro window of the secondary clip:
// [0, min(introSeconds, secondaryDuration)]. ok is false when there is none.
func IntroEntry(rules config.Ruleset, secondaryDuration float64) (Entry, bool) {
	end := math.Min(rules.IntroSeconds, secondaryDuration)
	if end <= 0 {
		return Entry{}, false
	}
	return Entry{Kind: KindIntro, Start: 0, End: end}, true
}

// WithIntro attaches the intro window to the plan and returns it.
func (p *Plan) WithIntro(secondaryDuration float64) *Plan {
	if intro, ok := IntroEntry(p.Rules, secondaryDuration); ok {
		p.Intro = &intro
	} else {
		p.Intro = nil
	}
	return p
}
