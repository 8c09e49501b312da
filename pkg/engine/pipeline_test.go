package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockOutput captures writes for verification
type MockOutput struct {
	mu       sync.Mutex
	captured []string
	fail     bool
}

func (m *MockOutput) WriteBatch(entries [][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("output down")
	}
	for _, e := range entries {
		m.captured = append(m.captured, string(e))
	}
	return nil
}

func (m *MockOutput) Captured() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.captured...)
}

type errProcessor struct{}

func (errProcessor) Name() string { return "err" }

func (errProcessor) Process(_ *ProcessingContext, entry []byte) ([]byte, bool, error) {
	if string(entry) == "boom" {
		return entry, false, errors.New("boom")
	}
	return entry, false, nil
}

func newTestPipeline(t *testing.T, chain *ProcessorChain, out *MockOutput, opts ...PipelineOption) (*Pipeline, *RingBuffer) {
	t.Helper()
	buf, err := NewRingBuffer(128)
	require.NoError(t, err)
	p := NewPipeline(buf, chain, out, append([]PipelineOption{WithBatchSize(10)}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	p.Start(ctx)
	return p, buf
}

func TestPipeline_Integration(t *testing.T) {
	filter, err := NewKeywordFilterProcessor(KeywordFilterConfig{
		Name:     "filter",
		Keywords: []string{"bad"},
		Mode:     ModeBlock,
	})
	require.NoError(t, err)
	redact, err := NewRedactionProcessor("redact", []string{"secret"}, "xxxx")
	require.NoError(t, err)

	out := &MockOutput{}
	_, buf := newTestPipeline(t, NewProcessorChain(filter, redact, errProcessor{}), out)

	require.NoError(t, buf.Push([]byte("good log")))
	require.NoError(t, buf.Push([]byte("this has secret value")))
	require.NoError(t, buf.Push([]byte("this is BAD log")))
	require.NoError(t, buf.Push([]byte("boom")))

	require.Eventually(t, func() bool { return len(out.Captured()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"good log", "this has xxxx value"}, out.Captured())
}

func TestPipeline_HotSwapChain(t *testing.T) {
	out := &MockOutput{}
	p, buf := newTestPipeline(t, NewProcessorChain(), out)

	require.NoError(t, buf.Push([]byte("debug line")))
	require.Eventually(t, func() bool { return len(out.Captured()) == 1 }, time.Second, 10*time.Millisecond)

	filter, err := NewKeywordFilterProcessor(KeywordFilterConfig{Name: "f", Keywords: []string{"debug"}})
	require.NoError(t, err)
	p.UpdateChain(NewProcessorChain(filter))
	assert.Equal(t, []string{"f"}, p.Chain().Names())

	require.NoError(t, buf.Push([]byte("debug again")))
	require.NoError(t, buf.Push([]byte("info line")))
	require.Eventually(t, func() bool { return len(out.Captured()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "info line", out.Captured()[1])
}

func TestPipeline_HotSwapOutput(t *testing.T) {
	first := &MockOutput{}
	p, buf := newTestPipeline(t, NewProcessorChain(), first)

	second := &MockOutput{}
	p.UpdateOutput(second)

	require.NoError(t, buf.Push([]byte("to second")))
	require.Eventually(t, func() bool { return len(second.Captured()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, first.Captured())
}

func TestPipeline_OutputErrorDoesNotStopWorker(t *testing.T) {
	out := &MockOutput{fail: true}
	_, buf := newTestPipeline(t, NewProcessorChain(), out)

	require.NoError(t, buf.Push([]byte("lost")))
	time.Sleep(3 * flushInterval)

	out.mu.Lock()
	out.fail = false
	out.mu.Unlock()

	require.NoError(t, buf.Push([]byte("kept")))
	require.Eventually(t, func() bool { return len(out.Captured()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"kept"}, out.Captured())
}

func TestPipeline_FailOpenBypassesChain(t *testing.T) {
	filter, err := NewKeywordFilterProcessor(KeywordFilterConfig{Name: "f", Keywords: []string{"bad"}})
	require.NoError(t, err)

	buf, err := NewRingBuffer(128)
	require.NoError(t, err)
	out := &MockOutput{}
	p := NewPipeline(buf, NewProcessorChain(filter), out, WithBatchSize(500), WithFailOpenRatio(0.5))

	// Fill before starting so the first pops see usage above the ratio.
	for i := 0; i < 100; i++ {
		require.NoError(t, buf.Push([]byte("fill_bad")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	// Usage is measured after each pop: it stays above 64 for the first 35
	// entries, which bypass the chain. The rest hit the filter and drop.
	require.Eventually(t, func() bool { return len(out.Captured()) == 35 }, time.Second, 10*time.Millisecond)
	time.Sleep(2 * flushInterval)
	assert.Len(t, out.Captured(), 35)
}

func TestPipeline_Options(t *testing.T) {
	buf, err := NewRingBuffer(8)
	require.NoError(t, err)
	p := NewPipeline(buf, NewProcessorChain(), &MockOutput{},
		WithWorkers(3), WithBatchSize(7), WithFailOpenRatio(2), WithLogger(nil))

	assert.Equal(t, 3, p.workers)
	assert.Equal(t, int64(7), p.BatchSize())
	assert.Equal(t, defaultFailOpenRatio, p.failOpenRatio, "out of range ratio ignored")

	p.UpdateBatchSize(0)
	assert.Equal(t, int64(defaultBatchSize), p.BatchSize())
}
