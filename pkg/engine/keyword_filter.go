package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"keywordgate/pkg/matcher"
)

// FilterMode decides what a keyword hit means.
type FilterMode string

const (
	// ModeBlock drops entries that contain any keyword.
	ModeBlock FilterMode = "block"
	// ModeAllow keeps only entries that contain a keyword. With no keywords
	// configured every entry is kept.
	ModeAllow FilterMode = "allow"
)

// keywordFilterBufferSize is the scan buffer each filter engine starts with;
// processors scan entries in place and never write into it.
const keywordFilterBufferSize = 64

// otelSearchPaths lists where well-known OTel attributes usually live in JSON
// logs. Dots inside key names are escaped for gjson.
var otelSearchPaths = map[string][]string{
	"service.name": {
		"service\\.name",
		"resource.attributes.service\\.name",
		"resourceAttributes.service\\.name",
		"resource.service\\.name",
	},
	"deployment.environment": {
		"deployment\\.environment",
		"resource.attributes.deployment\\.environment",
		"resourceAttributes.deployment\\.environment",
	},
	"http.url": {
		"http\\.url",
		"attributes.http\\.url",
	},
	"http.target": {
		"http\\.target",
		"attributes.http\\.target",
	},
	"log.level": {
		"log\\.level",
		"severity",
		"severityText",
		"level",
	},
	"body": {
		"body",
		"message",
		"msg",
	},
}

// genericSearchPaths are tried for any attribute not in otelSearchPaths.
var genericSearchPaths = []string{
	"%s",
	"attributes.%s",
	"resource.attributes.%s",
	"resourceAttributes.%s",
	"body.%s",
}

// KeywordFilterConfig holds configuration for creating a KeywordFilterProcessor.
type KeywordFilterConfig struct {
	Name          string
	Keywords      []string
	CaseSensitive bool
	Mode          FilterMode // defaults to ModeBlock

	// Optional JSON field scope. At most one may be set; with neither, the
	// whole entry is scanned.
	Attribute string // well-known attribute, searched in common locations
	Path      string // explicit path, "/" separated, e.g. "resource/attributes/service.name"

	MaxStates int
	Logger    *slog.Logger
}

// KeywordFilterProcessor drops or keeps entries depending on whether they
// contain any of a set of keywords. The keyword set can be replaced while
// the processor is in use.
type KeywordFilterProcessor struct {
	name   string
	mode   FilterMode
	attr   string
	path   string // gjson form
	scope  filterScope
	engine *matcher.FilterEngine
}

// filterScope is everything about a keyword filter except its keywords.
type filterScope struct {
	caseSensitive bool
	mode          FilterMode
	attr          string
	path          string
	maxStates     int
}

func scopeOf(cfg KeywordFilterConfig) filterScope {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeBlock
	}
	return filterScope{
		caseSensitive: cfg.CaseSensitive,
		mode:          mode,
		attr:          cfg.Attribute,
		path:          cfg.Path,
		maxStates:     cfg.MaxStates,
	}
}

// NewKeywordFilterProcessor validates cfg and compiles its keywords.
func NewKeywordFilterProcessor(cfg KeywordFilterConfig) (*KeywordFilterProcessor, error) {
	if cfg.Attribute != "" && cfg.Path != "" {
		return nil, fmt.Errorf("keyword filter %q: cannot specify both attribute and path", cfg.Name)
	}

	mode := cfg.Mode
	switch mode {
	case "":
		mode = ModeBlock
	case ModeBlock, ModeAllow:
	default:
		return nil, fmt.Errorf("keyword filter %q: unknown mode %q", cfg.Name, mode)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &KeywordFilterProcessor{
		name: cfg.Name,
		mode: mode,
		attr: cfg.Attribute,
		engine: matcher.NewWithOptions(matcher.Options{
			CaseSensitive:     cfg.CaseSensitive,
			InitialBufferSize: keywordFilterBufferSize,
			MaxStates:         cfg.MaxStates,
			Logger:            logger.With("processor", cfg.Name),
		}),
	}
	if cfg.Path != "" {
		p.path = convertToGjsonPath(cfg.Path)
	}
	p.scope = scopeOf(cfg)

	if err := p.engine.UpdateKeywords(cfg.Keywords); err != nil {
		return nil, fmt.Errorf("keyword filter %q: %w", cfg.Name, err)
	}
	return p, nil
}

func (p *KeywordFilterProcessor) Name() string {
	return p.name
}

// Mode returns the configured filter mode.
func (p *KeywordFilterProcessor) Mode() FilterMode {
	return p.mode
}

// Accepts reports whether cfg differs from this processor's configuration
// in keywords only, so the processor can be kept and its keywords swapped.
func (p *KeywordFilterProcessor) Accepts(cfg KeywordFilterConfig) bool {
	return cfg.Name == p.name && scopeOf(cfg) == p.scope
}

// KeywordUpdate is a compiled keyword set waiting to be committed to its
// processor.
type KeywordUpdate struct {
	proc *KeywordFilterProcessor
	set  *matcher.KeywordSet
}

// PrepareKeywords compiles keywords without changing what the processor
// matches.
func (p *KeywordFilterProcessor) PrepareKeywords(keywords []string) (*KeywordUpdate, error) {
	set, err := p.engine.Compile(keywords)
	if err != nil {
		return nil, fmt.Errorf("keyword filter %q: %w", p.name, err)
	}
	return &KeywordUpdate{proc: p, set: set}, nil
}

// Commit publishes the prepared set.
func (u *KeywordUpdate) Commit() {
	u.proc.engine.Publish(u.set)
	if !u.set.Unchanged() {
		recordKeywordReload(u.proc.name)
	}
}

// UpdateKeywords swaps in a new keyword set. On error the old set stays.
func (p *KeywordFilterProcessor) UpdateKeywords(keywords []string) error {
	u, err := p.PrepareKeywords(keywords)
	if err != nil {
		return err
	}
	u.Commit()
	return nil
}

// Stats exposes the underlying engine state.
func (p *KeywordFilterProcessor) Stats() matcher.Stats {
	return p.engine.Stats()
}

// Process scans the entry (or its configured field) once.
// Entries that are not JSON, or lack the field, pass through untouched.
func (p *KeywordFilterProcessor) Process(ctx *ProcessingContext, entry []byte) ([]byte, bool, error) {
	// No keywords: nothing to block, and allow mode lets everything through.
	if !p.engine.Filtered() {
		return entry, false, nil
	}

	var hit bool
	if p.attr == "" && p.path == "" {
		hit = p.engine.CheckMatchBytes(entry)
	} else {
		value, ok := p.field(entry)
		if !ok {
			return entry, false, nil
		}
		hit = p.engine.CheckMatch(value.String())
	}

	if p.mode == ModeAllow {
		return entry, !hit, nil
	}
	return entry, hit, nil
}

func (p *KeywordFilterProcessor) field(entry []byte) (gjson.Result, bool) {
	if !gjson.ValidBytes(entry) {
		return gjson.Result{}, false
	}

	if p.path != "" {
		value := gjson.GetBytes(entry, p.path)
		return value, value.Exists()
	}

	if paths, ok := otelSearchPaths[p.attr]; ok {
		for _, path := range paths {
			if value := gjson.GetBytes(entry, path); value.Exists() {
				return value, true
			}
		}
	}

	escaped := strings.ReplaceAll(p.attr, ".", "\\.")
	for _, tmpl := range genericSearchPaths {
		if value := gjson.GetBytes(entry, fmt.Sprintf(tmpl, escaped)); value.Exists() {
			return value, true
		}
	}
	return gjson.Result{}, false
}

// convertToGjsonPath converts user-friendly path (using /) to gjson path.
// Example: "resource/attributes/service.name" -> "resource.attributes.service\.name"
func convertToGjsonPath(userPath string) string {
	parts := strings.Split(userPath, "/")
	for i, part := range parts {
		parts[i] = strings.ReplaceAll(part, ".", "\\.")
	}
	return strings.Join(parts, ".")
}
