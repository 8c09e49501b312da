package engine

import (
	"context"
)

// ProcessingContext holds per-worker state handed to every processor.
type ProcessingContext struct {
	context.Context

	// Worker identifies the pipeline worker running the chain.
	Worker int
}
