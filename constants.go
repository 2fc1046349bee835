package uringrt

import "github.com/cloudcutter/uringrt/internal/constants"

// Re-exported defaults for public API use.
const (
	DefaultRingEntries       = constants.DefaultRingEntries
	DefaultSlabCapacity      = constants.DefaultSlabCapacity
	GlobalQueueCheckInterval = constants.GlobalQueueCheckInterval
	MaxRunsBeforeYield       = constants.MaxRunsBeforeYield
)
