package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// ImagesDirName holds the downloaded image files
	ImagesDirName = "images"
	// TagsDirName holds one tag text file per image
	TagsDirName = "tags"

	tempSuffix = ".tmp"
)

// Manager handles the output directory layout and atomic file writes
type Manager struct {
	outputDir string
	imagesDir string
	tagsDir   string
	saved     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates the output directory with its images/ and tags/ subdirectories
func NewManager(outputDir string) (*Manager, error) {
	m := &Manager{
		outputDir: outputDir,
		imagesDir: filepath.Join(outputDir, ImagesDirName),
		tagsDir:   filepath.Join(outputDir, TagsDirName),
		saved:     make(map[string]bool),
	}

	for _, dir := range []string{m.outputDir, m.imagesDir, m.tagsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return m, nil
}

// ImageExists checks if an image file with the given name is already on disk
func (m *Manager) ImageExists(name string) bool {
	m.mu.RLock()
	cached := m.saved[name]
	m.mu.RUnlock()
	if cached {
		return true
	}

	info, err := os.Stat(m.ImagePath(name))
	return err == nil && info.Mode().IsRegular()
}

// TagsExist checks if a tag file with the given name is already on disk
func (m *Manager) TagsExist(name string) bool {
	info, err := os.Stat(m.TagPath(name))
	return err == nil && info.Mode().IsRegular()
}

// SaveImage writes an image through fill into a temporary file and renames
// it into place once fill succeeds. A failed write leaves nothing behind.
func (m *Manager) SaveImage(name string, fill func(w io.Writer) error) error {
	if err := writeAtomic(m.imagesDir, name, fill); err != nil {
		return err
	}

	m.mu.Lock()
	m.saved[name] = true
	m.mu.Unlock()
	return nil
}

// SaveTags writes the tag text for an image
func (m *Manager) SaveTags(name, text string) error {
	return writeAtomic(m.tagsDir, name, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

func writeAtomic(dir, name string, fill func(w io.Writer) error) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid file name %q", name)
	}
	target := filepath.Join(dir, name)

	out, err := os.CreateTemp(dir, name+".*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	err = fill(out)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// ImagePath returns the full path of an image file
func (m *Manager) ImagePath(name string) string {
	return filepath.Join(m.imagesDir, name)
}

// TagPath returns the full path of a tag file
func (m *Manager) TagPath(name string) string {
	return filepath.Join(m.tagsDir, name)
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// ImagesDir returns the images directory path
func (m *Manager) ImagesDir() string {
	return m.imagesDir
}

// TagsDir returns the tags directory path
func (m *Manager) TagsDir() string {
	return m.tagsDir
}
