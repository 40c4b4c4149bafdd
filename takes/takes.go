// Package takes stores recorded performances as timestamped JSON files
package takes

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"pas-de-deux/config"
	"pas-de-deux/performance"
)

const stampLayout = "2006-01-02_15-04-05"

// SaveInfo represents a saved take file (for listing)
type SaveInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// Store is a directory of takes
type Store struct {
	Dir string
}

// DefaultStore is ~/.config/pas-de-deux/takes
func DefaultStore() (*Store, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return &Store{Dir: filepath.Join(dir, "takes")}, nil
}

// List returns saved takes, newest first
func (s *Store) List() ([]SaveInfo, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, err
	}

	var saves []SaveInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, ok := parseFilename(entry.Name())
		if ok {
			saves = append(saves, info)
		}
	}

	sort.Slice(saves, func(i, j int) bool {
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})
	return saves, nil
}

// parseFilename reads 2024-01-15_14-30-00.json or 2024-01-15_14-30-00_name.json
func parseFilename(name string) (SaveInfo, bool) {
	if !strings.HasSuffix(name, ".json") {
		return SaveInfo{}, false
	}
	base := strings.TrimSuffix(name, ".json")
	if len(base) < len(stampLayout) {
		return SaveInfo{}, false
	}
	ts, err := time.ParseInLocation(stampLayout, base[:len(stampLayout)], time.Local)
	if err != nil {
		return SaveInfo{}, false
	}

	saveName := ""
	if len(base) > len(stampLayout)+1 && base[len(stampLayout)] == '_' {
		saveName = base[len(stampLayout)+1:]
	}
	return SaveInfo{Filename: name, Name: saveName, Timestamp: ts}, true
}

// Save writes a take stamped with its start time and returns the filename
func (s *Store) Save(t performance.Take) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", err
	}

	stamp := t.Started
	if stamp.IsZero() {
		stamp = time.Now()
	}
	filename := stamp.Format(stampLayout)
	if t.Name != "" {
		filename += "_" + sanitizeFilename(t.Name)
	}
	filename += ".json"

	if err := os.WriteFile(filepath.Join(s.Dir, filename), data, 0644); err != nil {
		return "", err
	}
	return filename, nil
}

// Load reads a specific take (or the most recent if filename is empty)
func (s *Store) Load(filename string) (performance.Take, error) {
	var t performance.Take
	if filename == "" {
		saves, err := s.List()
		if err != nil {
			return t, err
		}
		if len(saves) == 0 {
			return t, errors.Errorf("no takes in %s", s.Dir)
		}
		filename = saves[0].Filename
	}

	data, err := os.ReadFile(filepath.Join(s.Dir, filename))
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, errors.Wrapf(err, "parse take %s", filename)
	}
	return t, nil
}

// Delete removes a saved take
func (s *Store) Delete(filename string) error {
	return os.Remove(filepath.Join(s.Dir, filename))
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	name = strings.NewReplacer(" ", "-", "/", "-", "\\", "-", ":", "-").Replace(name)
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`*?"<>|`, r) {
			return -1
		}
		return r
	}, name)
}
