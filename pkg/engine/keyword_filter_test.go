package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordFilter_BlockMode(t *testing.T) {
	proc, err := NewKeywordFilterProcessor(KeywordFilterConfig{
		Name:     "drop_noise",
		Keywords: []string{"healthcheck", "kube-probe"},
		Mode:     ModeBlock,
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		wantDrop bool
	}{
		{"keyword - drop", `GET /healthcheck 200`, true},
		{"case folded - drop", `User-Agent: Kube-Probe/1.29`, true},
		{"no keyword - pass", `POST /api/orders 201`, false},
		{"empty - pass", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, drop, err := proc.Process(nil, []byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDrop, drop)
			assert.Equal(t, tt.input, string(out))
		})
	}
}

func TestKeywordFilter_AllowMode(t *testing.T) {
	proc, err := NewKeywordFilterProcessor(KeywordFilterConfig{
		Name:          "errors_only",
		Keywords:      []string{"ERROR", "FATAL"},
		CaseSensitive: true,
		Mode:          ModeAllow,
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		wantDrop bool
	}{
		{"keyword - keep", `2024-01-01 ERROR disk full`, false},
		{"other keyword - keep", `FATAL: out of memory`, false},
		{"wrong case - drop", `error: lower case`, true},
		{"no keyword - drop", `INFO started`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, drop, err := proc.Process(nil, []byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDrop, drop)
		})
	}
}

func TestKeywordFilter_NoKeywordsPassesEverything(t *testing.T) {
	for _, mode := range []FilterMode{ModeBlock, ModeAllow} {
		t.Run(string(mode), func(t *testing.T) {
			proc, err := NewKeywordFilterProcessor(KeywordFilterConfig{
				Name:     "empty",
				Keywords: []string{" ", ""},
				Mode:     mode,
			})
			require.NoError(t, err)
			assert.False(t, proc.Stats().Filtered)

			_, drop, err := proc.Process(nil, []byte("anything at all"))
			require.NoError(t, err)
			assert.False(t, drop)
		})
	}
}

func TestKeywordFilter_UpdateKeywords(t *testing.T) {
	proc, err := NewKeywordFilterProcessor(KeywordFilterConfig{
		Name:     "hot",
		Keywords: []string{"alpha"},
	})
	require.NoError(t, err)
	assert.Equal(t, ModeBlock, proc.Mode(), "block is the default mode")

	_, drop, _ := proc.Process(nil, []byte("alpha beta"))
	assert.True(t, drop)

	require.NoError(t, proc.UpdateKeywords([]string{"gamma"}))
	_, drop, _ = proc.Process(nil, []byte("alpha beta"))
	assert.False(t, drop)
	_, drop, _ = proc.Process(nil, []byte("GAMMA ray"))
	assert.True(t, drop)

	require.NoError(t, proc.UpdateKeywords(nil))
	_, drop, _ = proc.Process(nil, []byte("GAMMA ray"))
	assert.False(t, drop)
}

func TestKeywordFilter_PrepareThenCommit(t *testing.T) {
	cfg := KeywordFilterConfig{Name: "hot", Keywords: []string{"alpha"}, Attribute: "body"}
	proc, err := NewKeywordFilterProcessor(cfg)
	require.NoError(t, err)

	upd, err := proc.PrepareKeywords([]string{"beta"})
	require.NoError(t, err)
	_, drop, _ := proc.Process(nil, []byte(`{"msg":"alpha"}`))
	assert.True(t, drop, "prepared keywords are not active yet")

	upd.Commit()
	_, drop, _ = proc.Process(nil, []byte(`{"msg":"alpha"}`))
	assert.False(t, drop)
	_, drop, _ = proc.Process(nil, []byte(`{"msg":"BETA"}`))
	assert.True(t, drop)
}

func TestKeywordFilter_Accepts(t *testing.T) {
	base := KeywordFilterConfig{Name: "f", Keywords: []string{"a"}, Attribute: "service.name"}
	proc, err := NewKeywordFilterProcessor(base)
	require.NoError(t, err)

	same := base
	same.Keywords = []string{"other", "set"}
	assert.True(t, proc.Accepts(same), "keywords alone may change")

	explicitBlock := base
	explicitBlock.Mode = ModeBlock
	assert.True(t, proc.Accepts(explicitBlock), "empty mode means block")

	for name, mutate := range map[string]func(*KeywordFilterConfig){
		"name":      func(c *KeywordFilterConfig) { c.Name = "g" },
		"mode":      func(c *KeywordFilterConfig) { c.Mode = ModeAllow },
		"case":      func(c *KeywordFilterConfig) { c.CaseSensitive = true },
		"attribute": func(c *KeywordFilterConfig) { c.Attribute = "body" },
		"path":      func(c *KeywordFilterConfig) { c.Attribute, c.Path = "", "a/b" },
		"limit":     func(c *KeywordFilterConfig) { c.MaxStates = 99 },
	} {
		cfg := base
		mutate(&cfg)
		assert.False(t, proc.Accepts(cfg), name)
	}
}

func TestKeywordFilter_AttributeScope(t *testing.T) {
	proc, err := NewKeywordFilterProcessor(KeywordFilterConfig{
		Name:      "svc",
		Keywords:  []string{"auth"},
		Attribute: "service.name",
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		wantDrop bool
	}{
		{"top-level attribute", `{"service.name": "auth-service", "message": "hello"}`, true},
		{"nested in resource.attributes", `{"resource": {"attributes": {"service.name": "AUTH-api"}}, "body": "hello"}`, true},
		{"nested in resourceAttributes", `{"resourceAttributes": {"service.name": "my-auth"}}`, true},
		{"keyword outside the field - pass", `{"service.name": "billing", "message": "auth failed"}`, false},
		{"attribute not found - pass", `{"other.field": "auth"}`, false},
		{"not json - pass", `auth service plain text`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, drop, err := proc.Process(nil, []byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDrop, drop)
		})
	}
}

func TestKeywordFilter_GenericAttribute(t *testing.T) {
	proc, err := NewKeywordFilterProcessor(KeywordFilterConfig{
		Name:      "user",
		Keywords:  []string{"bot"},
		Attribute: "user.agent",
		Mode:      ModeBlock,
	})
	require.NoError(t, err)

	_, drop, err := proc.Process(nil, []byte(`{"attributes": {"user.agent": "Googlebot/2.1"}}`))
	require.NoError(t, err)
	assert.True(t, drop)
}

func TestKeywordFilter_ExplicitPath(t *testing.T) {
	proc, err := NewKeywordFilterProcessor(KeywordFilterConfig{
		Name:     "path",
		Keywords: []string{"canary"},
		Path:     "metadata/labels/app.track",
		Mode:     ModeAllow,
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		wantDrop bool
	}{
		{"match - keep", `{"metadata": {"labels": {"app.track": "canary-1"}}}`, false},
		{"no match - drop", `{"metadata": {"labels": {"app.track": "stable"}}}`, true},
		{"path not found - keep", `{"other": "canary"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, drop, err := proc.Process(nil, []byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDrop, drop)
		})
	}
}

func TestKeywordFilter_ConfigErrors(t *testing.T) {
	_, err := NewKeywordFilterProcessor(KeywordFilterConfig{
		Name:      "both",
		Attribute: "service.name",
		Path:      "a/b",
	})
	assert.Error(t, err)

	_, err = NewKeywordFilterProcessor(KeywordFilterConfig{Name: "mode", Mode: "sometimes"})
	assert.Error(t, err)

	_, err = NewKeywordFilterProcessor(KeywordFilterConfig{
		Name:      "huge",
		Keywords:  []string{"a keyword longer than the limit"},
		MaxStates: 4,
	})
	assert.Error(t, err)
}

func TestConvertToGjsonPath(t *testing.T) {
	assert.Equal(t, `resource.attributes.service\.name`, convertToGjsonPath("resource/attributes/service.name"))
	assert.Equal(t, `level`, convertToGjsonPath("level"))
}

func TestRedactionProcessor(t *testing.T) {
	proc, err := NewRedactionProcessor("redact", []string{"4111-1111", "SECRET", " "}, "xxxx")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no target", "INFO user login ok", "INFO user login ok"},
		{"one target", "card=4111-1111 ok", "card=xxxx ok"},
		{"all targets", "SECRET 4111-1111 SECRET", "xxxx xxxx xxxx"},
		{"case sensitive", "secret stays", "secret stays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, drop, err := proc.Process(nil, []byte(tt.input))
			require.NoError(t, err)
			assert.False(t, drop)
			assert.Equal(t, tt.want, string(out))
		})
	}

	_, err = NewRedactionProcessor("empty", []string{" "}, "x")
	assert.Error(t, err)
}

func BenchmarkChain_NoMatch(b *testing.B) {
	filter, err := NewKeywordFilterProcessor(KeywordFilterConfig{
		Name:     "drop_debug",
		Keywords: []string{"DEBUG", "TRACE", "healthcheck"},
	})
	if err != nil {
		b.Fatal(err)
	}
	redact, err := NewRedactionProcessor("redact_cc", []string{"4111-1234"}, "xxxx")
	if err != nil {
		b.Fatal(err)
	}
	chain := NewProcessorChain(filter, redact)

	data := []byte("INFO: User login successful for ID 9999")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = chain.Process(nil, data)
	}
}
