package extractor

import (
	"context"
	"encoding/json"
	"errors"
)

// fakePage answers Evaluate by script with canned values.
type fakePage struct {
	results   map[string]any
	evalErr   error
	evaluated []string
}

func (p *fakePage) Navigate(context.Context, string) error { return nil }

func (p *fakePage) Evaluate(_ context.Context, script string, out any) error {
	p.evaluated = append(p.evaluated, script)
	if p.evalErr != nil {
		return p.evalErr
	}
	if out == nil {
		return nil
	}
	v, ok := p.results[script]
	if !ok {
		return errors.New("unexpected script")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *fakePage) Close() error { return nil }
