package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"keywordgate/pkg/output"
)

const (
	defaultBatchSize     = 100
	defaultFailOpenRatio = 0.80
	flushInterval        = 100 * time.Millisecond
	idleSleep            = time.Millisecond
)

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithWorkers sets the number of consumer goroutines. Ordering across
// entries is only preserved with a single worker.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithBatchSize sets the initial batch size.
func WithBatchSize(n int) PipelineOption {
	return func(p *Pipeline) { p.UpdateBatchSize(int64(n)) }
}

// WithFailOpenRatio sets the ring usage above which entries skip the chain.
func WithFailOpenRatio(r float64) PipelineOption {
	return func(p *Pipeline) {
		if r > 0 && r <= 1 {
			p.failOpenRatio = r
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pipeline connects the Ingest Buffer -> ProcessorChain -> Output.
type Pipeline struct {
	buffer *RingBuffer

	chain  atomic.Pointer[ProcessorChain]      // Hot-swappable chain
	output atomic.Pointer[output.FanOutOutput] // Hot-swappable output

	batchSize     atomic.Int64
	workers       int
	failOpenRatio float64
	logger        *slog.Logger
}

func NewPipeline(buf *RingBuffer, chain *ProcessorChain, out output.Output, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		buffer:        buf,
		workers:       1,
		failOpenRatio: defaultFailOpenRatio,
		logger:        slog.Default(),
	}
	p.batchSize.Store(defaultBatchSize)
	p.chain.Store(chain)
	p.output.Store(asFanOut(out))

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// asFanOut keeps the stored output type uniform.
func asFanOut(out output.Output) *output.FanOutOutput {
	if f, ok := out.(*output.FanOutOutput); ok {
		return f
	}
	return output.NewFanOutOutput(out)
}

// UpdateChain hot-swaps the processor chain safely.
func (p *Pipeline) UpdateChain(chain *ProcessorChain) {
	p.chain.Store(chain)
	p.logger.Info("processor chain swapped", "processors", chain.Names())
}

// Chain returns the active processor chain.
func (p *Pipeline) Chain() *ProcessorChain {
	return p.chain.Load()
}

// UpdateOutput hot-swaps the output provider safely.
func (p *Pipeline) UpdateOutput(out output.Output) {
	p.output.Store(asFanOut(out))
	p.logger.Info("output swapped")
}

// UpdateBatchSize changes the flush threshold. Values below 1 reset it to the default.
func (p *Pipeline) UpdateBatchSize(n int64) {
	if n < 1 {
		n = defaultBatchSize
	}
	p.batchSize.Store(n)
}

// BatchSize returns the current flush threshold.
func (p *Pipeline) BatchSize() int64 {
	return p.batchSize.Load()
}

func (p *Pipeline) Start(ctx context.Context) {
	p.logger.Info("starting processing pipeline", "workers", p.workers, "ring_size", p.buffer.Capacity())
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx, i)
	}
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	m := meters()
	batch := make([][]byte, 0, p.batchSize.Load())
	pCtx := &ProcessingContext{Context: ctx, Worker: id}

	var seen, dropped, bypassed, failed int64

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if seen > 0 {
			// context.Background: the final flush runs after ctx is cancelled.
			bg := context.Background()
			m.entries.Add(bg, seen)
			m.dropped.Add(bg, dropped)
			m.bypassed.Add(bg, bypassed)
			m.errors.Add(bg, failed)
			seen, dropped, bypassed, failed = 0, 0, 0, 0
		}
		if len(batch) == 0 {
			return
		}
		if err := p.output.Load().WriteBatch(batch); err != nil {
			p.logger.Error("output write failed", "entries", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		default:
			item := p.buffer.Pop()
			if item == nil {
				time.Sleep(idleSleep)
				continue
			}
			seen++

			// Fail-open: when the ring is nearly full, skip processing to drain faster.
			if float64(p.buffer.Usage()) > float64(p.buffer.Capacity())*p.failOpenRatio {
				bypassed++
				batch = append(batch, item)
			} else {
				processed, drop, err := p.chain.Load().Process(pCtx, item)
				switch {
				case err != nil:
					failed++
					p.logger.Debug("process error", "error", err)
				case drop:
					dropped++
				default:
					batch = append(batch, processed)
				}
			}

			if int64(len(batch)) >= p.batchSize.Load() {
				flush()
			}
		}
	}
}
