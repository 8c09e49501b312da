package matcher

import (
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NormalizeKeywords trims every keyword, drops empty ones and later
// duplicates, and lowercases them unless caseSensitive is set. Order is
// preserved. Invalid UTF-8 bytes survive lowercasing unchanged.
func NormalizeKeywords(raw []string, caseSensitive bool) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, kw := range raw {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if !caseSensitive {
			kw = lowerString(kw)
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// Fingerprint hashes a normalized keyword sequence. Order matters. Every
// keyword is length-prefixed, so no byte inside a keyword can imitate a
// boundary between two keywords.
func Fingerprint(keywords []string) uint64 {
	d := xxhash.New()
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(keywords)))
	_, _ = d.Write(n[:])
	for _, kw := range keywords {
		binary.LittleEndian.PutUint64(n[:], uint64(len(kw)))
		_, _ = d.Write(n[:])
		_, _ = d.WriteString(kw)
	}
	return d.Sum64()
}
