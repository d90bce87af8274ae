package refdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Set is a read-only lookup table loaded once at process start.
type Set struct {
	entries map[string]struct{}
}

// Len returns the number of entries.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Contains reports an exact (case-insensitive) membership test.
func (s *Set) Contains(value string) bool {
	if s == nil {
		return false
	}
	_, ok := s.entries[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// MatchHost reports whether the host or any of its parent domains is listed,
// so "news.example.com" matches a blacklisted "example.com".
func (s *Set) MatchHost(host string) (string, bool) {
	if s == nil {
		return "", false
	}
	host = strings.ToLower(strings.TrimSpace(host))
	for host != "" {
		if _, ok := s.entries[host]; ok {
			return host, true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return "", false
}

// FromValues builds a Set directly from the given entries.
func FromValues(values ...string) *Set {
	set := &Set{entries: make(map[string]struct{}, len(values))}
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" {
			set.entries[value] = struct{}{}
		}
	}
	return set
}

// Load reads a one-column CSV into a Set. A header row named "domain" or
// "username" is skipped; blank lines are ignored.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read reference dataset %s: %w", path, err)
	}

	set := &Set{entries: make(map[string]struct{}, len(records))}
	for i, record := range records {
		if len(record) == 0 {
			continue
		}
		value := strings.ToLower(strings.TrimSpace(record[0]))
		if value == "" {
			continue
		}
		if i == 0 && (value == "domain" || value == "username" || value == "user") {
			continue
		}
		set.entries[value] = struct{}{}
	}

	return set, nil
}

// LoadOptional behaves like Load but treats a missing file as an empty set,
// so a deployment without one of the datasets still runs with the related
// metrics scoring zero.
func LoadOptional(path string) (*Set, error) {
	if path == "" {
		return &Set{entries: map[string]struct{}{}}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Set{entries: map[string]struct{}{}}, nil
	}
	return Load(path)
}
