package engine

// Processor is one step of a ProcessorChain: a keyword filter, a redaction,
// or anything else that inspects a single log entry.
type Processor interface {
	// Process returns the (possibly rewritten) entry and whether it should be
	// dropped. A dropped entry skips the rest of the chain. Implementations
	// must not retain entry, and the pass-through path should not allocate.
	Process(ctx *ProcessingContext, entry []byte) ([]byte, bool, error)

	// Name identifies the processor in logs and manifests.
	Name() string
}
