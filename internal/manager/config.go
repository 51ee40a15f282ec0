package manager

import (
	"inferd/internal/engine"
	"inferd/internal/store"
)

// Default applied when Config.ResidencyLimit is unset: keep only the single
// most-recently-used model in memory.
const defaultResidencyLimit = 1

// Config encapsulates all tunables for Manager construction.
type Config struct {
	Store  *store.Store
	Engine engine.Engine
	// DefaultModel is used when a request omits the model id.
	DefaultModel string
	// ResidencyLimit is how many loaded models to keep in memory after a
	// load completes. 0 applies the package default; negative disables
	// automatic eviction.
	ResidencyLimit int
	// Publisher receives lifecycle events; nil drops them.
	Publisher EventPublisher
}
