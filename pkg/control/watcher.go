package control

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"keywordgate/pkg/engine"
)

// Watcher keeps a pipeline in sync with a manifest stored in Redis. The
// manifest is read from a key on start and re-read whenever a message
// arrives on the update channel.
type Watcher struct {
	redisClient redis.UniversalClient
	pipeline    *engine.Pipeline
	builder     *Builder
	configKey   string
	channel     string
	onApply     func()
	logger      *slog.Logger
}

func NewWatcher(client redis.UniversalClient, pipeline *engine.Pipeline, configKey, channel string) *Watcher {
	return &Watcher{
		redisClient: client,
		pipeline:    pipeline,
		builder:     &Builder{Redis: client},
		configKey:   configKey,
		channel:     channel,
		logger:      slog.Default().With("component", "control"),
	}
}

// WithMaxStates bounds the automata built for manifest keyword filters.
func (w *Watcher) WithMaxStates(n int) *Watcher {
	w.builder.MaxStates = n
	return w
}

// OnApply registers fn to run after every manifest that is applied.
func (w *Watcher) OnApply(fn func()) *Watcher {
	w.onApply = fn
	return w
}

// Start loads the current manifest and subscribes to updates. It returns
// once the subscription is set up; updates are handled until ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info("starting config watcher", "key", w.configKey, "channel", w.channel)

	if err := w.reload(ctx); err != nil {
		w.logger.Warn("initial manifest load failed", "error", err)
	}

	pubsub := w.redisClient.Subscribe(ctx, w.channel)
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				w.logger.Info("update signal received", "payload", msg.Payload)
				if err := w.reload(ctx); err != nil {
					w.logger.Warn("manifest reload failed, keeping current state", "error", err)
				}
			}
		}
	}()
}

func (w *Watcher) reload(ctx context.Context) error {
	val, err := w.redisClient.Get(ctx, w.configKey).Bytes()
	if errors.Is(err, redis.Nil) {
		w.logger.Info("no manifest in redis, keeping current state", "key", w.configKey)
		return nil
	}
	if err != nil {
		return err
	}
	return load(w.pipeline, w.builder, val, w.logger, w.onApply)
}

// load parses, compiles and applies a manifest. Nothing is applied on error.
// onApply may be nil.
func load(p *engine.Pipeline, b *Builder, data []byte, logger *slog.Logger, onApply func()) error {
	m, err := ParseManifest(data)
	if err != nil {
		return err
	}
	built, err := b.Build(m, p.Chain())
	if err != nil {
		return err
	}
	Apply(p, built)
	logger.Info("manifest applied",
		"version", m.Version,
		"pipeline", m.Pipelines[0].Name,
		"processors", built.Chain.Len(),
		"reused", built.Reused())
	if onApply != nil {
		onApply()
	}
	return nil
}
