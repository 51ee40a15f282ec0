// Package manager coordinates model loading: it deduplicates concurrent
// load requests per model id (single-flight) and maintains the in-memory
// residency cache, which is distinct from disk residency in the store.
// It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: Config and package defaults.
//   - acquire.go: AcquireReady fast path, in-flight await, and load path.
//   - evict.go: EvictToResidencyLimit ranking and release.
//   - release.go: explicit unload of one entry and Close.
//   - errors.go: error types and helpers (IsLoadFailed).
//   - events.go / eventpub_memory.go: lifecycle event publishing.
//
// External packages should treat this package as the coordination layer and
// use public methods only. Internal types are subject to change.
package manager
