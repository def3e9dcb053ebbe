package storage

import "time"

// File is an in-memory upload.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Object is a stored blob.
type Object struct {
	ID          string    `json:"id,omitempty"`
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Limits bound what POST /uploads accepts.
type Limits struct {
	MaxFileSize  int64
	AllowedTypes []string
}
