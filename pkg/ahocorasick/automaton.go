// Package ahocorasick compiles keyword sets into a deterministic multi-pattern
// automaton and answers "does any keyword occur in this text" in one pass.
//
// The automaton only reports hit/no-hit. Which keyword matched, and where, is
// never tracked, so the scan can stop at the first state that completes any
// keyword.
package ahocorasick

import (
	"errors"
	"fmt"
)

const alphabet = 256

// DefaultMaxStates bounds automaton size when Options.MaxStates is zero.
// Each state costs 1 KiB of transition table, so this is ~256 MiB.
const DefaultMaxStates = 1 << 18

var (
	ErrTooManyStates = errors.New("automaton state limit exceeded")
	ErrNoKeywords    = errors.New("no non-empty keywords")
)

// Options controls automaton construction.
type Options struct {
	// ASCIICaseInsensitive folds 'A'..'Z' to lower case, both in the keywords
	// and (through the transition table) in every scanned byte.
	ASCIICaseInsensitive bool

	// MaxStates caps the number of states. Zero means DefaultMaxStates.
	MaxStates int
}

// Automaton is an immutable, fully deterministic matcher. It is safe for
// concurrent use once Build returns.
type Automaton struct {
	// trans is a dense states*256 table; trans[s<<8|b] is the next state.
	trans []int32
	// match[s] is set when a keyword ends at s or anywhere on its failure chain.
	match    []bool
	patterns int
	nonASCII bool
	fold     bool
}

// Build compiles keywords into an Automaton.
//
// Construction happens in three phases:
//  1. Trie: every keyword is inserted byte by byte from the root (state 0).
//  2. Failure links: a BFS from the root gives each state the state of the
//     longest proper suffix of its path that is also a trie path.
//  3. Determinization: missing edges are filled from the failure state's row,
//     so scanning never walks failure chains.
//
// Empty keywords are skipped. Build fails with ErrNoKeywords if nothing is
// left, and with ErrTooManyStates if the trie outgrows opts.MaxStates.
func Build(keywords [][]byte, opts Options) (*Automaton, error) {
	maxStates := opts.MaxStates
	if maxStates <= 0 {
		maxStates = DefaultMaxStates
	}

	a := &Automaton{fold: opts.ASCIICaseInsensitive}
	a.addState()

	if err := a.buildTrie(keywords, maxStates); err != nil {
		return nil, err
	}
	if a.patterns == 0 {
		return nil, ErrNoKeywords
	}

	a.computeFailureLinks()

	if a.fold {
		a.aliasUpperCase()
	}
	return a, nil
}

func (a *Automaton) addState() int32 {
	id := int32(len(a.match))
	row := make([]int32, alphabet)
	for i := range row {
		row[i] = -1
	}
	a.trans = append(a.trans, row...)
	a.match = append(a.match, false)
	return id
}

func (a *Automaton) buildTrie(keywords [][]byte, maxStates int) error {
	for _, kw := range keywords {
		if len(kw) == 0 {
			continue
		}
		cur := int32(0)
		for _, c := range kw {
			if c >= 0x80 {
				a.nonASCII = true
			}
			if a.fold {
				c = lower(c)
			}
			idx := int(cur)<<8 | int(c)
			next := a.trans[idx]
			if next < 0 {
				if len(a.match) >= maxStates {
					return fmt.Errorf("%w: %d states", ErrTooManyStates, maxStates)
				}
				next = a.addState()
				a.trans[idx] = next
			}
			cur = next
		}
		a.match[cur] = true
		a.patterns++
	}
	return nil
}

// computeFailureLinks fills the transition table in BFS order. When a state
// is dequeued its failure state is strictly shallower, so the failure row is
// already complete and can be copied for every missing edge.
func (a *Automaton) computeFailureLinks() {
	fail := make([]int32, len(a.match))
	queue := make([]int32, 0, len(a.match))

	// Depth 1: failure is the root, missing root edges loop back to root.
	for c := 0; c < alphabet; c++ {
		next := a.trans[c]
		if next < 0 {
			a.trans[c] = 0
			continue
		}
		fail[next] = 0
		queue = append(queue, next)
	}

	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]

		row := int(s) << 8
		failRow := int(fail[s]) << 8
		for c := 0; c < alphabet; c++ {
			next := a.trans[row|c]
			if next < 0 {
				a.trans[row|c] = a.trans[failRow|c]
				continue
			}
			f := a.trans[failRow|c]
			fail[next] = f
			if a.match[f] {
				a.match[next] = true
			}
			queue = append(queue, next)
		}
	}
}

// aliasUpperCase makes every 'A'..'Z' transition behave like its lower-case
// counterpart. Keywords were folded during the trie phase, so upper-case
// columns only ever held failure transitions.
func (a *Automaton) aliasUpperCase() {
	for s := 0; s < len(a.match); s++ {
		row := s << 8
		for c := 'A'; c <= 'Z'; c++ {
			a.trans[row|int(c)] = a.trans[row|int(c+('a'-'A'))]
		}
	}
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// StateCount returns the number of states including the root.
func (a *Automaton) StateCount() int {
	return len(a.match)
}

// PatternCount returns the number of non-empty keywords compiled in.
// Duplicates are counted.
func (a *Automaton) PatternCount() int {
	return a.patterns
}

// HasNonASCII reports whether any keyword contains a byte >= 0x80.
func (a *Automaton) HasNonASCII() bool {
	return a.nonASCII
}

// CaseInsensitive reports whether the automaton folds ASCII letters.
func (a *Automaton) CaseInsensitive() bool {
	return a.fold
}
