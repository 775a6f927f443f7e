package raster

import "fmt"

// SourceReadError reports an unreadable, corrupt or unsupported raster.
type SourceReadError struct {
	Path string
	Err  error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("raster: read %s: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

func readError(path string, err error) error {
	return &SourceReadError{Path: path, Err: err}
}
