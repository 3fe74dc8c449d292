package director

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WritePlan saves the plan as YAML, prefixed with a comment naming the rules
// and the resulting output length so the file is readable on its own.
func WritePlan(plan *Plan, path string) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n# output %.2fs from %.2fs of source\n",
		plan.Rules.String(), plan.OutputDuration(), plan.SourceDuration)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(plan); err != nil {
		return fmt.Errorf("encode plan %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode plan %s: %w", path, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write plan %s: %w", path, err)
	}
	return nil
}

// ReadPlan loads a plan written by WritePlan and rejects files whose
// entries could not have come from the planner.
func ReadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if err := plan.Check(); err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return &plan, nil
}

// Check verifies ordering and bounds: entries are indexed in order, do not
// overlap, stay inside the source and zoom windows carry a percent.
func (p *Plan) Check() error {
	var errs []error
	if p.Intro != nil && (p.Intro.Kind != KindIntro || p.Intro.Start != 0 || p.Intro.End <= 0) {
		errs = append(errs, fmt.Errorf("bad intro window %s", p.Intro))
	}
	prevEnd := 0.0
	for i, e := range p.Entries {
		switch {
		case e.Index != i:
			errs = append(errs, fmt.Errorf("entry %d has index %d", i, e.Index))
		case e.Kind == KindIntro:
			errs = append(errs, fmt.Errorf("entry %d: intro inside the timeline", i))
		case e.End <= e.Start:
			errs = append(errs, fmt.Errorf("entry %d: empty window %s", i, e))
		case e.Start < prevEnd:
			errs = append(errs, fmt.Errorf("entry %d: %s overlaps previous window", i, e))
		case e.End > p.SourceDuration:
			errs = append(errs, fmt.Errorf("entry %d: %s past source end %g", i, e, p.SourceDuration))
		case e.Kind == KindZoom && e.ZoomPercent == nil:
			errs = append(errs, fmt.Errorf("entry %d: zoom without percent", i))
		}
		prevEnd = e.End
	}
	return errors.Join(errs...)
}
