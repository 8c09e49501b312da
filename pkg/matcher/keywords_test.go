package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKeywords(t *testing.T) {
	tests := []struct {
		name          string
		raw           []string
		caseSensitive bool
		want          []string
	}{
		{"nil", nil, false, []string{}},
		{"trim and drop empty", []string{" a ", "", "\t", "b\n"}, true, []string{"a", "b"}},
		{"lowercase", []string{"Error", "WARN"}, false, []string{"error", "warn"}},
		{"keep case", []string{"Error", "WARN"}, true, []string{"Error", "WARN"}},
		{"dedup keeps first", []string{"b", "a", "B", "b"}, false, []string{"b", "a"}},
		{"case distinct when sensitive", []string{"b", "B"}, true, []string{"b", "B"}},
		{"unicode lowercase", []string{"ÉCOLE"}, false, []string{"école"}},
		{"invalid utf-8 kept", []string{"\xffABC", "\xfe"}, false, []string{"\xffabc", "\xfe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKeywords(tt.raw, tt.caseSensitive))
		})
	}
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint([]string{"a", "b"}), Fingerprint([]string{"a", "b"}))
	assert.NotEqual(t, Fingerprint([]string{"a", "b"}), Fingerprint([]string{"b", "a"}))
	assert.NotEqual(t, Fingerprint([]string{"ab"}), Fingerprint([]string{"a", "b"}))
	assert.NotEqual(t, Fingerprint(nil), Fingerprint([]string{""}))
	assert.NotEqual(t, Fingerprint([]string{"a", "b"}), Fingerprint([]string{"a\x00b"}))
	assert.NotEqual(t, Fingerprint([]string{"a\x00", "b"}), Fingerprint([]string{"a", "\x00b"}))
}

func TestAppendLower(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"MiXeD 123", "mixed 123"},
		{"ÉCOLE", "école"},
		{"\xff\xfe", "\xff\xfe"},
		{"A\xffÉ\xc3", "a\xffé\xc3"},
		{"\uFFFD", "\uFFFD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(appendLower(nil, []byte(tt.in))), "bytes %q", tt.in)
		assert.Equal(t, tt.want, lowerString(tt.in), "string %q", tt.in)
	}
}
