package model

import "time"

// Document is the processing record of one handled upload.
// This is a pure domain model with no database-specific dependencies or tags.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	StoredName  string    `json:"stored_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Mode        string    `json:"mode"`
	Fallback    bool      `json:"fallback"`
	ArtifactKey string    `json:"artifact_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	ModeExtractOnly = "extract"
	ModeStructured  = "structured"
)
