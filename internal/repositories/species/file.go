package species

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/undercroft/undercroft/internal/ai"
)

const (
	schemaFile    = "_schema.json"
	historySuffix = ".history.json"
)

type schemaDoc struct {
	SchemaVersion int `json:"_schema_version"`
}

type fileRepo struct {
	dir string
}

// NewFile creates a file-backed species repository rooted at dir, one
// JSON file per species plus a separate history blob. All writes go
// through write-tmp-then-rename so a crash never leaves a torn file.
func NewFile(dir string) (Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create species dir: %w", err)
	}
	return &fileRepo{dir: dir}, nil
}

func (r *fileRepo) LoadAll(_ context.Context) (map[string]*Record, error) {
	ok, err := r.schemaMatches()
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := r.reset(); err != nil {
			return nil, err
		}
		return map[string]*Record{}, nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read species dir: %w", err)
	}

	records := make(map[string]*Record)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == schemaFile ||
			strings.HasSuffix(name, historySuffix) || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read species file %q: %w", name, err)
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal species file %q: %w", name, err)
		}
		records[rec.MonsterType] = &rec
	}

	return records, nil
}

func (r *fileRepo) SaveAll(_ context.Context, records map[string]*Record) error {
	for monsterType, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal species %q: %w", monsterType, err)
		}
		if err := r.writeAtomic(monsterType+".json", data); err != nil {
			return err
		}
	}

	schema, err := json.Marshal(schemaDoc{SchemaVersion: ai.SchemaVersion})
	if err != nil {
		return fmt.Errorf("failed to marshal schema doc: %w", err)
	}
	return r.writeAtomic(schemaFile, schema)
}

func (r *fileRepo) LoadHistory(_ context.Context, monsterType string) ([]HistoryEntry, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, monsterType+historySuffix))
	if os.IsNotExist(err) {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %q: %w", monsterType, err)
	}

	var history []HistoryEntry
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history for %q: %w", monsterType, err)
	}
	return history, nil
}

func (r *fileRepo) SaveHistory(_ context.Context, monsterType string, history []HistoryEntry) error {
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history for %q: %w", monsterType, err)
	}
	return r.writeAtomic(monsterType+historySuffix, data)
}

func (r *fileRepo) schemaMatches() (bool, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, schemaFile))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read species schema file: %w", err)
	}

	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, nil // unreadable schema is treated as a mismatch
	}
	return doc.SchemaVersion == ai.SchemaVersion, nil
}

func (r *fileRepo) reset() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("failed to read species dir for reset: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove %q: %w", entry.Name(), err)
		}
	}

	schema, err := json.Marshal(schemaDoc{SchemaVersion: ai.SchemaVersion})
	if err != nil {
		return fmt.Errorf("failed to marshal schema doc: %w", err)
	}
	return r.writeAtomic(schemaFile, schema)
}

// writeAtomic writes to a temp file in the same directory and renames
// it over the target, so readers never observe a partial write.
func (r *fileRepo) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(r.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %q: %w", name, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file for %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file for %q: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(r.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to rename temp file for %q: %w", name, err)
	}
	return nil
}
