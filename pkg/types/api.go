package types

// InferRequest represents an inference request payload.
type InferRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: whisper-base-q5
	Model string `json:"model,omitempty" example:"whisper-base-q5"`
	// Required input to run inference on.
	// example: transcribe: clip-0042
	Input string `json:"input" example:"transcribe: clip-0042"`
}

// InferResponse is the buffered result of a batched inference call.
type InferResponse struct {
	// Identifier assigned to the request when it entered the batch.
	// example: 9f4c1c9e-6d2a-4f3e-8a6e-2a1b0c7d5e43
	RequestID string `json:"request_id" example:"9f4c1c9e-6d2a-4f3e-8a6e-2a1b0c7d5e43"`
	// Model that served the request.
	// example: whisper-base-q5
	Model string `json:"model" example:"whisper-base-q5"`
	// Inference output.
	Output string `json:"output"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// Stored model records, sorted by id.
	Models []ModelRecord `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model could not be loaded: artifact unreadable
	Error string `json:"error" example:"model could not be loaded: artifact unreadable"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// ResidentStatus summarizes one in-memory cache entry for /status.
type ResidentStatus struct {
	// ID of the model this entry serves.
	// example: whisper-base-q5
	ModelID string `json:"model_id" example:"whisper-base-q5"`
	// When the model was loaded into memory (unix seconds).
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix" example:"1700000000"`
	// Last time this entry served a request (unix seconds).
	// example: 1700000060
	LastAccessed int64 `json:"last_accessed_unix" example:"1700000060"`
	// Number of cache hits plus the initial load.
	// example: 12
	AccessCount int64 `json:"access_count" example:"12"`
}

// PoolStatus reports context pool occupancy.
type PoolStatus struct {
	// Contexts sitting on the free-list.
	// example: 3
	Free int `json:"free" example:"3"`
	// Contexts currently acquired.
	// example: 1
	InUse int `json:"in_use" example:"1"`
	// Free + in-use.
	// example: 4
	Total int `json:"total" example:"4"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Models currently loaded into memory.
	Residents []ResidentStatus `json:"residents"`
	// Disk quota in bytes across all stored artifacts.
	// example: 2147483648
	QuotaBytes int64 `json:"quota_bytes" example:"2147483648"`
	// Bytes currently occupied by stored artifacts.
	// example: 536870912
	UsedBytes int64 `json:"used_bytes" example:"536870912"`
	// Number of model records on disk.
	// example: 4
	StoredModels int `json:"stored_models" example:"4"`
	// Context pool occupancy.
	Pool PoolStatus `json:"pool"`
	// Background tasks waiting for a worker slot.
	// example: 0
	QueuedTasks int `json:"queued_tasks" example:"0"`
	// Total number of disk evictions performed to stay under quota.
	// example: 5
	EvictionsTotal uint64 `json:"evictions_total" example:"5"`
	// Total number of physical model loads.
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	// Uptime of the daemon in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Last load error observed (if any).
	LastError string `json:"last_error,omitempty"`
}
