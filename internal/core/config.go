package core

// RuntimeConfig holds per-realm configuration. Built once before
// bootstrap; never read concurrently with mutation.
type RuntimeConfig struct {
	MemoryLimitMB     int // per-VM memory limit (0 = engine default)
	ExecutionTimeout  int // milliseconds before a drain gives up
	StringScratchSize int // bound for the no-alloc string scratch buffer
	MaxOpArgs         int // argument-count ceiling for one op call
	CompletionBuffer  int // driver completion channel capacity
}

// DefaultConfig returns the defaults used when a field is zero.
func DefaultConfig() RuntimeConfig {
	return RuntimeConfig{
		ExecutionTimeout:  5000,
		StringScratchSize: DefaultStringScratchSize,
		MaxOpArgs:         32,
		CompletionBuffer:  256,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c RuntimeConfig) WithDefaults() RuntimeConfig {
	d := DefaultConfig()
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = d.ExecutionTimeout
	}
	if c.StringScratchSize <= 0 {
		c.StringScratchSize = d.StringScratchSize
	}
	if c.MaxOpArgs <= 0 {
		c.MaxOpArgs = d.MaxOpArgs
	}
	if c.CompletionBuffer <= 0 {
		c.CompletionBuffer = d.CompletionBuffer
	}
	return c
}
