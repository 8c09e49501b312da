package engine

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"keywordgate/pkg/matcher"
)

// RedactionProcessor replaces every occurrence of a set of literal targets
// with a mask. A keyword engine over the targets screens entries first, so
// entries without any target cost one scan and no allocation.
type RedactionProcessor struct {
	name    string
	targets [][]byte
	mask    []byte
	screen  *matcher.FilterEngine
}

func NewRedactionProcessor(name string, targets []string, mask string) (*RedactionProcessor, error) {
	r := &RedactionProcessor{
		name: name,
		mask: []byte(mask),
		screen: matcher.NewWithOptions(matcher.Options{
			CaseSensitive:     true,
			InitialBufferSize: keywordFilterBufferSize,
			Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		}),
	}

	keywords := matcher.NormalizeKeywords(targets, true)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("redaction %q: no targets", name)
	}
	for _, kw := range keywords {
		r.targets = append(r.targets, []byte(kw))
	}
	if err := r.screen.UpdateKeywords(keywords); err != nil {
		return nil, fmt.Errorf("redaction %q: %w", name, err)
	}
	return r, nil
}

func (r *RedactionProcessor) Name() string {
	return r.name
}

func (r *RedactionProcessor) Process(ctx *ProcessingContext, entry []byte) ([]byte, bool, error) {
	if !r.screen.CheckMatchBytes(entry) {
		return entry, false, nil
	}
	// bytes.ReplaceAll allocates; only entries that carry a target get here.
	for _, target := range r.targets {
		if bytes.Contains(entry, target) {
			entry = bytes.ReplaceAll(entry, target, r.mask)
		}
	}
	return entry, false, nil
}
