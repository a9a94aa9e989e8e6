// Package usage records per-call tool usage bookkeeping to a local sqlite
// database: which tool ran, for which agent, how long it took, and how it
// ended. Every mediated call is recorded regardless of outcome.
package usage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type Recorder struct {
	db *gorm.DB
}

type ToolCallEntry struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`

	AgentID    string `gorm:"index"`
	Tool       string
	DurationMs int64
	IsError    bool
	Denied     bool
}

const (
	usageSchemaVersion = 1
)

func NewRecorder(dbFilePath string) (*Recorder, error) {
	dbFileExists := true
	if _, err := os.Stat(dbFilePath); errors.Is(err, os.ErrNotExist) {
		dbFileExists = false
	} else if err != nil {
		return nil, fmt.Errorf("error checking usage db: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbFilePath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("error opening usage db: %w", err)
	}

	if needsMigration(dbFileExists, db, filepath.Dir(dbFilePath)) {
		if err := db.AutoMigrate(&ToolCallEntry{}); err != nil {
			return nil, fmt.Errorf("error auto-migrating usage db schema: %w", err)
		}
		if err := writeSchemaVersion(filepath.Dir(dbFilePath), usageSchemaVersion); err != nil {
			return nil, fmt.Errorf("error writing usage schema version: %w", err)
		}
	}

	return &Recorder{db: db}, nil
}

func needsMigration(dbFileExists bool, db *gorm.DB, dir string) bool {
	if !dbFileExists {
		return true
	}

	versionMatches, err := schemaVersionMatches(dir)
	if err != nil || !versionMatches {
		return true
	}

	// If the version marker is present but the table is missing (corruption
	// or manual deletion), re-run migrations to restore the schema.
	return !db.Migrator().HasTable(&ToolCallEntry{})
}

func writeSchemaVersion(dir string, version int) error {
	return os.WriteFile(schemaVersionPath(dir), []byte(strconv.Itoa(version)), 0644)
}

func schemaVersionMatches(dir string) (bool, error) {
	data, err := os.ReadFile(schemaVersionPath(dir))
	if err != nil {
		return false, err
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, err
	}
	if version != usageSchemaVersion {
		return false, fmt.Errorf("usage schema version mismatch: got %d, want %d", version, usageSchemaVersion)
	}
	return true, nil
}

func schemaVersionPath(dir string) string {
	return filepath.Join(dir, "usage_schema_version")
}

// Record persists one tool call. Errors are returned so the caller can log
// them, but a failed record never fails the tool call itself.
func (r *Recorder) Record(agentID, tool string, durationMs int64, isError, denied bool) error {
	entry := ToolCallEntry{
		AgentID:    agentID,
		Tool:       tool,
		DurationMs: durationMs,
		IsError:    isError,
		Denied:     denied,
	}

	result := r.db.Create(&entry)
	return result.Error
}

// RecentEntries returns up to limit entries for the given agent in
// chronological order. An empty agentID matches all agents.
func (r *Recorder) RecentEntries(agentID string, limit int) ([]ToolCallEntry, error) {
	var entries []ToolCallEntry
	db := r.db
	if agentID != "" {
		db = db.Where("agent_id = ?", agentID)
	}
	result := db.Order("id desc").Limit(limit).Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	slices.Reverse(entries)
	return entries, nil
}
