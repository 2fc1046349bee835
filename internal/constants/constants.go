package constants

// Default configuration constants for the driver and executor.
const (
	// DefaultRingEntries is the default number of submission queue entries
	// a Driver's ring is created with.
	DefaultRingEntries = 256

	// DefaultSlabCapacity is the initial capacity of a Driver's operation
	// slab before it grows.
	DefaultSlabCapacity = 256

	// GlobalQueueCheckInterval is how often (in dequeued runnables) the
	// executor checks the global injector queue even when its local queue
	// is non-empty, to bound starvation of tasks scheduled from other
	// threads.
	GlobalQueueCheckInterval = 50

	// MaxRunsBeforeYield bounds how many runnables the executor polls
	// before yielding control back to the driver to collect completions.
	MaxRunsBeforeYield = 100
)
