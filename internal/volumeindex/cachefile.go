package volumeindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SaveFile writes m to path as a JSON list. The file is replaced atomically.
func SaveFile(path string, m Mapping) error {
	entries := make([]Entry, 0, len(m))
	for _, e := range m {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SubvolumePath < entries[j].SubvolumePath
	})

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode volume index: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp.Name(), path, err)
	}
	return nil
}

// LoadFile reads a mapping written by SaveFile. Failures are reported as
// *CacheReadError.
func LoadFile(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CacheReadError{Path: path, Err: err}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &CacheReadError{Path: path, Err: err}
	}

	m := make(Mapping, len(entries))
	for _, e := range entries {
		if e.SubvolumePath == "" {
			continue
		}
		m[e.SubvolumePath] = e
	}
	return m, nil
}
