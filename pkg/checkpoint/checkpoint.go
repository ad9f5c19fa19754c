package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"xscraper/pkg/logger"
)

// Version is the on-disk format version
const Version = 1

// Checkpoint is the resumable position of one account's harvest
type Checkpoint struct {
	Handle     string    `json:"handle"`
	OutputFile string    `json:"output_file"`
	Cursor     string    `json:"cursor"`
	Pages      int       `json:"pages"`
	TotalSaved int       `json:"total_saved"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int       `json:"version"`
}

// Manager reads and writes one handle's checkpoint file
type Manager struct {
	path   string
	logger logger.Logger

	mu      sync.Mutex
	current *Checkpoint
}

// NewManager creates a manager under the per-user data directory
func NewManager(handle string, log logger.Logger) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerAt(filepath.Join(dataDir, "checkpoints"), handle, log)
}

// NewManagerAt creates a manager storing its file in dir
func NewManagerAt(dir, handle string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	name := strings.ToLower(strings.TrimPrefix(handle, "@"))
	return &Manager{
		path:   filepath.Join(dir, name+".checkpoint.json"),
		logger: log.WithField("component", "checkpoint"),
	}, nil
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.path
}

// Load reads the checkpoint; it returns nil, nil when none exists
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != Version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", cp.Version)
	}

	m.mu.Lock()
	m.current = &cp
	m.mu.Unlock()

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"handle":      cp.Handle,
		"total_saved": cp.TotalSaved,
		"pages":       cp.Pages,
		"updated_at":  cp.UpdatedAt,
	})
	return &cp, nil
}

// Start begins a fresh checkpoint for handle, replacing any existing one
func (m *Manager) Start(handle, outputFile string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		Handle:     handle,
		OutputFile: outputFile,
		CreatedAt:  now,
		Version:    Version,
	}
	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}
	m.mu.Lock()
	m.current = cp
	m.mu.Unlock()
	return cp, nil
}

// Record stores the position after a processed page
func (m *Manager) Record(cursor string, pages, totalSaved int) error {
	m.mu.Lock()
	cp := m.current
	m.mu.Unlock()
	if cp == nil {
		return fmt.Errorf("checkpoint not started")
	}

	cp.Cursor = cursor
	cp.Pages = pages
	cp.TotalSaved = totalSaved
	return m.Save(cp)
}

// Save writes cp atomically: temp file, fsync, rename
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"cursor":      cp.Cursor,
		"pages":       cp.Pages,
		"total_saved": cp.TotalSaved,
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// getDataDirectory returns the per-user data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "xscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "xscraper")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "xscraper")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "xscraper")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
