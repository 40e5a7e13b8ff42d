package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrCourseNotFound = errors.New("course not found")

// ValidationError carries every violated field at once so the client gets
// the full picture in a single response.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UploadFailedError wraps a storage failure from the upload batch of an
// edit. The edit is aborted; nothing was written to the course tree.
type UploadFailedError struct {
	Filename string
	Err      error
}

func (e *UploadFailedError) Error() string {
	return fmt.Sprintf("upload of %q failed: %v", e.Filename, e.Err)
}

func (e *UploadFailedError) Unwrap() error { return e.Err }
