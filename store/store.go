// Package store persists one JSON snapshot per crawled domain, plus
// immutable timestamped backup copies. The live file is only ever replaced
// atomically; a crash mid-pass leaves the previous snapshot intact.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/use-agent/dossier/models"
)

// backupStamp is an ISO-ish timestamp that is safe in file names.
const backupStamp = "2006-01-02T15-04-05"

// Store reads and writes domain snapshots under a single data directory.
// Passes are serialized by the scheduler's run guard, so the store needs no
// locking of its own.
type Store struct {
	dataDir string
}

// New creates the data directory if needed.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return &Store{dataDir: dataDir}, nil
}

func (st *Store) livePath(domain string) string {
	return filepath.Join(st.dataDir, domain+".json")
}

// Load reads the live snapshot for a domain. A missing file yields an empty
// snapshot, not an error.
func (st *Store) Load(domain string) (*models.Snapshot, error) {
	data, err := os.ReadFile(st.livePath(domain))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("store: read %s snapshot: %w", domain, err)
	}

	snap := models.NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("store: decode %s snapshot: %w", domain, err)
	}
	if snap.Records == nil {
		snap.Records = make(map[string]models.Record)
	}
	return snap, nil
}

// Save atomically replaces the live snapshot: write to a temp file in the
// same directory, then rename over the live file.
func (st *Store) Save(domain string, snap *models.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s snapshot: %w", domain, err)
	}

	tmp, err := os.CreateTemp(st.dataDir, domain+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, st.livePath(domain)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: replace %s snapshot: %w", domain, err)
	}
	return nil
}

// Backup writes an immutable timestamped copy of the live snapshot alongside
// it. Callers treat a backup failure as non-fatal.
func (st *Store) Backup(domain string) error {
	data, err := os.ReadFile(st.livePath(domain))
	if err != nil {
		return fmt.Errorf("store: read live %s snapshot for backup: %w", domain, err)
	}
	name := fmt.Sprintf("%s.backup.%s.json", domain, time.Now().Format(backupStamp))
	if err := os.WriteFile(filepath.Join(st.dataDir, name), data, 0o644); err != nil {
		return fmt.Errorf("store: write %s backup: %w", domain, err)
	}
	return nil
}
