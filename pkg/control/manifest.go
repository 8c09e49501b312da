package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"keywordgate/pkg/engine"
	"keywordgate/pkg/output"
)

var ErrNoPipelines = errors.New("manifest has no pipelines")

type Manifest struct {
	Version   string           `json:"version"`
	Pipelines []PipelineConfig `json:"pipelines"`
}

type PipelineConfig struct {
	Name       string          `json:"name"`
	Processors []ProcessorRule `json:"processors"`
	Outputs    []OutputTarget  `json:"outputs"`
	BatchSize  int             `json:"batch_size"`
}

// ProcessorRule describes one processor. Keywords may be given as a list or,
// for the legacy "filter" type, as a comma separated "value" param.
type ProcessorRule struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Keywords      []string          `json:"keywords"`
	CaseSensitive bool              `json:"case_sensitive"`
	Params        map[string]string `json:"params"`
}

type OutputTarget struct {
	Type    string            `json:"type"`
	URL     string            `json:"url"`
	Channel string            `json:"channel"`
	Headers map[string]string `json:"headers"`
}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON: %w", err)
	}
	if len(m.Pipelines) == 0 {
		return nil, ErrNoPipelines
	}
	return &m, nil
}

// Built is a compiled pipeline configuration ready to be swapped in.
type Built struct {
	Chain     *engine.ProcessorChain
	Output    output.Output
	BatchSize int64

	// Keyword sets for processors carried over from the running chain.
	// They take effect in Apply.
	updates []*engine.KeywordUpdate
}

// Reused reports how many processors were carried over from the running chain.
func (b *Built) Reused() int {
	return len(b.updates)
}

// Builder compiles manifests. Outputs that need external clients get them
// from here.
type Builder struct {
	// Redis backs "redis" outputs. Nil disables them.
	Redis     redis.UniversalClient
	MaxStates int
}

// Build compiles the first pipeline of m. Any invalid processor fails the
// whole build so a bad manifest never half-applies.
//
// Keyword filters in current whose id and settings match a rule are kept:
// only their keyword set is recompiled, and it is published by Apply.
// current may be nil.
func (b *Builder) Build(m *Manifest, current *engine.ProcessorChain) (*Built, error) {
	if len(m.Pipelines) == 0 {
		return nil, ErrNoPipelines
	}
	cfg := m.Pipelines[0]

	built := &Built{BatchSize: int64(cfg.BatchSize)}
	reused := make(map[engine.Processor]bool)

	processors := make([]engine.Processor, 0, len(cfg.Processors))
	for _, rule := range cfg.Processors {
		p, upd, err := b.reuseFilter(rule, current, reused)
		if err != nil {
			return nil, err
		}
		if p != nil {
			built.updates = append(built.updates, upd)
		} else if p, err = b.buildProcessor(rule); err != nil {
			return nil, err
		}
		processors = append(processors, p)
	}

	outputs := make([]output.Output, 0, len(cfg.Outputs))
	for _, target := range cfg.Outputs {
		out, err := b.buildOutput(target)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	if len(outputs) == 0 {
		outputs = append(outputs, output.NewConsoleOutput())
	}

	built.Chain = engine.NewProcessorChain(processors...)
	built.Output = output.NewFanOutOutput(outputs...)
	return built, nil
}

func (b *Builder) filterConfig(rule ProcessorRule) engine.KeywordFilterConfig {
	keywords := append([]string(nil), rule.Keywords...)
	if v, ok := rule.Params["value"]; ok {
		keywords = append(keywords, strings.Split(v, ",")...)
	}
	mode := engine.FilterMode(rule.Params["mode"])
	if rule.Type == "filter" && mode == "" {
		mode = engine.ModeBlock
	}
	return engine.KeywordFilterConfig{
		Name:          rule.ID,
		Keywords:      keywords,
		CaseSensitive: rule.CaseSensitive,
		Mode:          mode,
		Attribute:     rule.Params["attribute"],
		Path:          rule.Params["path"],
		MaxStates:     b.MaxStates,
	}
}

// reuseFilter returns the running keyword filter rule describes, with its
// new keyword set compiled but not published. It returns nil when there is
// nothing to reuse. Each running processor is reused at most once.
func (b *Builder) reuseFilter(rule ProcessorRule, current *engine.ProcessorChain, reused map[engine.Processor]bool) (engine.Processor, *engine.KeywordUpdate, error) {
	if current == nil || (rule.Type != "keyword_filter" && rule.Type != "filter") {
		return nil, nil, nil
	}
	existing, ok := current.Get(rule.ID).(*engine.KeywordFilterProcessor)
	if !ok || reused[existing] {
		return nil, nil, nil
	}
	cfg := b.filterConfig(rule)
	if !existing.Accepts(cfg) {
		return nil, nil, nil
	}
	upd, err := existing.PrepareKeywords(cfg.Keywords)
	if err != nil {
		return nil, nil, err
	}
	reused[existing] = true
	return existing, upd, nil
}

func (b *Builder) buildProcessor(rule ProcessorRule) (engine.Processor, error) {
	switch rule.Type {
	case "keyword_filter", "filter":
		return engine.NewKeywordFilterProcessor(b.filterConfig(rule))
	case "redact":
		targets := append([]string(nil), rule.Keywords...)
		if pat := rule.Params["pattern"]; pat != "" {
			targets = append(targets, pat)
		}
		mask := rule.Params["replacement"]
		if mask == "" {
			mask = "****"
		}
		return engine.NewRedactionProcessor(rule.ID, targets, mask)
	default:
		return nil, fmt.Errorf("processor %q: unknown type %q", rule.ID, rule.Type)
	}
}

func (b *Builder) buildOutput(target OutputTarget) (output.Output, error) {
	switch target.Type {
	case "console":
		return output.NewConsoleOutput(), nil
	case "http":
		if target.URL == "" {
			return nil, errors.New("http output requires url")
		}
		return output.NewHTTPOutput(target.URL, target.Headers), nil
	case "redis":
		if b.Redis == nil {
			return nil, errors.New("redis output requires a redis connection")
		}
		if target.Channel == "" {
			return nil, errors.New("redis output requires channel")
		}
		return output.NewRedisOutput(b.Redis, target.Channel), nil
	default:
		return nil, fmt.Errorf("unknown output type %q", target.Type)
	}
}

// Apply swaps a compiled configuration into the pipeline. Carried-over
// filters switch keyword sets first, then the chain is swapped.
func Apply(p *engine.Pipeline, built *Built) {
	for _, upd := range built.updates {
		upd.Commit()
	}
	p.UpdateChain(built.Chain)
	p.UpdateOutput(built.Output)
	p.UpdateBatchSize(built.BatchSize)
}
