package volumeindex

import "fmt"

// ClusterAPIError is returned when a refresh cycle cannot list cluster state.
type ClusterAPIError struct {
	Resource string
	Err      error
}

func (e *ClusterAPIError) Error() string {
	return fmt.Sprintf("list %s: %v", e.Resource, e.Err)
}

func (e *ClusterAPIError) Unwrap() error { return e.Err }

// CacheReadError is returned when the cache file is missing or corrupt.
type CacheReadError struct {
	Path string
	Err  error
}

func (e *CacheReadError) Error() string {
	return fmt.Sprintf("read volume index cache %s: %v", e.Path, e.Err)
}

func (e *CacheReadError) Unwrap() error { return e.Err }
