package types

import "time"

// ModelRecord describes a model artifact resident on disk, persisted as
// metadata.json next to the artifact file inside the model's directory.
type ModelRecord struct {
	// Stable identifier for the model.
	// example: whisper-base-q5
	ID string `json:"id" example:"whisper-base-q5"`
	// Human-friendly name.
	// example: Whisper Base (Q5)
	DisplayName string `json:"display_name" example:"Whisper Base (Q5)"`
	// Artifact size in bytes, as recorded at Put time.
	// example: 57600000
	SizeBytes int64 `json:"size_bytes" example:"57600000"`
	// Absolute path to the artifact file on disk.
	// example: /var/lib/inferd/models/whisper-base-q5/model.bin
	StoragePath string `json:"storage_path" example:"/var/lib/inferd/models/whisper-base-q5/model.bin"`
	// When the artifact was stored (unix time, UTC).
	DownloadedAt time.Time `json:"downloaded_at"`
	// Last explicit access (Touch); drives LRU eviction ranking.
	LastAccessedAt time.Time `json:"last_accessed_at"`
	// Optional capability tags (e.g., transcription, embedding).
	// example: ["transcription"]
	Capabilities []string `json:"capabilities,omitempty" example:"transcription"`
}
