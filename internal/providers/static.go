package providers

import (
	"context"
	"fmt"
)

// StaticProvider is a deterministic in-process provider used in development
// and tests. Text requests echo the prompt; image and video requests return
// a synthetic asset reference derived from the model name.
type StaticProvider struct {
	name string
}

// NewStaticProvider creates a static provider with the given name.
func NewStaticProvider(name string) *StaticProvider {
	if name == "" {
		name = "static"
	}
	return &StaticProvider{name: name}
}

func (p *StaticProvider) Name() string {
	return p.name
}

func (p *StaticProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var output interface{}
	switch req.Kind {
	case KindText:
		output = req.Prompt
	case KindImage:
		output = fmt.Sprintf("static://image/%s", req.Model)
	case KindVideo:
		output = fmt.Sprintf("static://video/%s", req.Model)
	default:
		return nil, fmt.Errorf("unsupported kind: %s", req.Kind)
	}

	// Rough token estimate so summaries have something to sum
	return &Result{
		Output:     output,
		TokensUsed: len(req.Prompt) / 4,
		Model:      req.Model,
	}, nil
}

// StaticFactory builds static providers.
type StaticFactory struct{}

func (f *StaticFactory) Create(config Config) (Provider, error) {
	return NewStaticProvider(config.Name), nil
}

func (f *StaticFactory) GetType() string {
	return "static"
}

func init() {
	RegisterFactory("static", &StaticFactory{})
}
