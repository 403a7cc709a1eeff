// Package model contains domain models/data structures shared across layers.
// No business logic here.
package model

// ResponseSchemaVersion identifies the shape of UploadResponse.
const ResponseSchemaVersion = "1"

// UploadedFile is the transient per-request description of a stored upload.
type UploadedFile struct {
	Path         string // absolute or relative storage path on local disk
	StoredName   string // generated basename (uuid + original extension)
	OriginalName string
	MimeType     string
	Size         int64
}

// StructuredDocument is any JSON object produced by structuring or its fallback.
type StructuredDocument map[string]any

// UploadResponse is the single, versioned response body of a successful upload.
// Data is set in extraction-only mode, StructuredData when AI structuring ran.
type UploadResponse struct {
	SchemaVersion  string             `json:"schema_version"`
	Success        bool               `json:"success"`
	RequestID      string             `json:"request_id,omitempty"`
	Filename       string             `json:"filename"`
	StoredName     string             `json:"stored_name"`
	Filetype       string             `json:"filetype"`
	Filesize       int64              `json:"filesize"`
	TextPreview    string             `json:"text_preview"`
	Data           *string            `json:"data,omitempty"`
	StructuredData StructuredDocument `json:"structured_data,omitempty"`
	DownloadURL    string             `json:"download_url,omitempty"`
}
