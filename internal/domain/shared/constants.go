package shared

const (
	// MaxContentLength is the maximum allowed block content length in bytes
	MaxContentLength = 20000

	// MaxTitleLength bounds project titles
	MaxTitleLength = 200

	// MaxTagLength bounds a single tag, in bytes after trimming
	MaxTagLength = 50
)
