package share

import "time"

// metadataName is the auxiliary JSON record stored next to every primary
// object. It must never be selected as a download candidate.
const metadataName = "metadata.json"

// placeholderName is the empty-folder marker some backends create under a
// key prefix.
const placeholderName = ".emptyFolderPlaceholder"

// FileMetadata is the sibling record written at {slug}/metadata.json. It
// is best-effort: retrieval works without it.
type FileMetadata struct {
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	UploadedAt   time.Time `json:"uploadedAt"`
	Slug         string    `json:"slug"`
}
