// Package matcher is the keyword filter engine: a compiled keyword set, an
// engine-owned scan buffer hosts can write into without copying, and the
// match entry points over both.
package matcher

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"
	"unsafe"

	"keywordgate/pkg/ahocorasick"
)

// Options configures a FilterEngine.
type Options struct {
	CaseSensitive     bool
	InitialBufferSize int // defaults to DefaultInitialBufferSize
	MaxBufferSize     int // defaults to DefaultMaxBufferSize
	MaxStates         int // defaults to ahocorasick.DefaultMaxStates
	Logger            *slog.Logger
}

// Stats describes the active keyword set.
type Stats struct {
	Filtered    bool
	Keywords    int
	States      int
	Fingerprint uint64
	BufferLen   int
	BufferCap   int
}

// compiled is what gets published on every keyword update. A nil automaton
// means no filter: everything matches.
type compiled struct {
	automaton   *ahocorasick.Automaton
	fingerprint uint64
}

// FilterEngine answers whether a text contains any of its keywords.
//
// A new engine has no keywords and matches everything. Keyword updates build
// a complete automaton first and then publish it with one atomic swap, so a
// scan sees either the old set or the new one. The scan buffer is not
// synchronized: buffer calls must come from a single owner.
type FilterEngine struct {
	current       atomic.Pointer[compiled]
	caseSensitive bool
	maxStates     int
	buf           *ScanBuffer
	logger        *slog.Logger
}

// New creates an engine with default buffer sizes.
func New(caseSensitive bool) *FilterEngine {
	return NewWithOptions(Options{CaseSensitive: caseSensitive})
}

// NewWithOptions creates an engine from opts.
func NewWithOptions(opts Options) *FilterEngine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &FilterEngine{
		caseSensitive: opts.CaseSensitive,
		maxStates:     opts.MaxStates,
		buf:           NewScanBuffer(opts.InitialBufferSize, opts.MaxBufferSize),
		logger:        logger,
	}
	e.current.Store(&compiled{fingerprint: Fingerprint(nil)})
	return e
}

// CaseSensitive reports the mode fixed at construction.
func (e *FilterEngine) CaseSensitive() bool {
	return e.caseSensitive
}

// Filtered reports whether a keyword set is active.
func (e *FilterEngine) Filtered() bool {
	return e.current.Load().automaton != nil
}

// KeywordSet is a keyword set compiled by FilterEngine.Compile and not yet
// published. It may only be published to the engine that compiled it.
type KeywordSet struct {
	c         *compiled
	keywords  int
	unchanged bool
}

// Unchanged reports whether the set equals the one active at compile time.
func (k *KeywordSet) Unchanged() bool {
	return k.unchanged
}

// UpdateKeywords replaces the keyword set. Keywords are trimmed, empty ones
// dropped and, in case-insensitive mode, lowercased. An empty result clears
// the filter. On error the previous set stays active.
func (e *FilterEngine) UpdateKeywords(raw []string) error {
	ks, err := e.Compile(raw)
	if err != nil {
		return err
	}
	e.Publish(ks)
	return nil
}

// Compile normalizes raw and builds its automaton without touching the
// active set. Callers that must validate several engines before switching
// any of them compile all first and publish after.
func (e *FilterEngine) Compile(raw []string) (*KeywordSet, error) {
	keywords := NormalizeKeywords(raw, e.caseSensitive)
	fp := Fingerprint(keywords)

	if cur := e.current.Load(); cur.fingerprint == fp {
		return &KeywordSet{c: cur, keywords: len(keywords), unchanged: true}, nil
	}
	if len(keywords) == 0 {
		return &KeywordSet{c: &compiled{fingerprint: fp}}, nil
	}

	patterns := make([][]byte, len(keywords))
	for i, kw := range keywords {
		patterns[i] = []byte(kw)
	}

	start := time.Now()
	a, err := ahocorasick.Build(patterns, ahocorasick.Options{
		ASCIICaseInsensitive: !e.caseSensitive,
		MaxStates:            e.maxStates,
	})
	if err != nil {
		e.logger.Error("keyword automaton build failed", "keywords", len(keywords), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrConstructionFailed, err)
	}
	e.logger.Debug("keyword automaton built",
		"keywords", len(keywords),
		"states", a.StateCount(),
		"build_duration", time.Since(start))
	return &KeywordSet{c: &compiled{automaton: a, fingerprint: fp}, keywords: len(keywords)}, nil
}

// Publish makes ks the active set with a single atomic swap.
func (e *FilterEngine) Publish(ks *KeywordSet) {
	if ks.unchanged {
		e.logger.Debug("keyword set unchanged", "keywords", ks.keywords)
		return
	}
	e.current.Store(ks.c)
	if ks.c.automaton == nil {
		e.logger.Info("keyword filter cleared")
		return
	}
	e.logger.Info("keyword automaton published",
		"keywords", ks.keywords,
		"states", ks.c.automaton.StateCount())
}

// CheckMatch scans text directly, bypassing the scan buffer.
func (e *FilterEngine) CheckMatch(text string) bool {
	a := e.current.Load().automaton
	if a == nil {
		return true
	}
	if e.needsUnicodeFold(a) && !isASCIIString(text) {
		return a.Match(appendLowerString(make([]byte, 0, len(text)), text))
	}
	return a.MatchString(text)
}

// CheckMatchBytes is CheckMatch for byte slices. text is never modified.
func (e *FilterEngine) CheckMatchBytes(text []byte) bool {
	a := e.current.Load().automaton
	if a == nil {
		return true
	}
	return e.scan(a, text)
}

// CheckMatchBuffered scans the first length bytes of the scan buffer. A
// length outside the active region is rejected with ErrOutOfRange.
func (e *FilterEngine) CheckMatchBuffered(length int) (bool, error) {
	data, err := e.buf.view(length)
	if err != nil {
		return false, err
	}
	a := e.current.Load().automaton
	if a == nil {
		return true, nil
	}
	return e.scan(a, data), nil
}

func (e *FilterEngine) scan(a *ahocorasick.Automaton, text []byte) bool {
	if e.needsUnicodeFold(a) && !isASCII(text) {
		// The only path that copies; the copy lives for this call only.
		return a.Match(appendLower(make([]byte, 0, len(text)), text))
	}
	return a.Match(text)
}

// needsUnicodeFold is true when ASCII folding in the automaton is not enough:
// case-insensitive mode with keywords outside ASCII.
func (e *FilterEngine) needsUnicodeFold(a *ahocorasick.Automaton) bool {
	return !e.caseSensitive && a.HasNonASCII()
}

// BufferBasePointer returns the scan buffer's base address. Any
// EnsureBufferCapacity call that reallocates invalidates it.
func (e *FilterEngine) BufferBasePointer() unsafe.Pointer {
	return e.buf.BasePointer()
}

// Buffer returns the scan buffer's active region for direct writes.
func (e *FilterEngine) Buffer() []byte {
	return e.buf.Bytes()
}

// EnsureBufferCapacity grows the scan buffer to hold size bytes and sets its
// active length to size.
func (e *FilterEngine) EnsureBufferCapacity(size int) error {
	return e.buf.EnsureCapacity(size)
}

// BufferGeneration changes whenever the scan buffer is reallocated.
func (e *FilterEngine) BufferGeneration() uint64 {
	return e.buf.Generation()
}

// Stats returns a snapshot of the engine state.
func (e *FilterEngine) Stats() Stats {
	c := e.current.Load()
	s := Stats{
		Fingerprint: c.fingerprint,
		BufferLen:   e.buf.Len(),
		BufferCap:   e.buf.Cap(),
	}
	if c.automaton != nil {
		s.Filtered = true
		s.Keywords = c.automaton.PatternCount()
		s.States = c.automaton.StateCount()
	}
	return s
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isASCIIString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
