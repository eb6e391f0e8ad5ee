// Package training rebuilds the face embedding store from enrollment photos
// on disk.
package training

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrInvalidName is returned when a display name has no characters usable in
// a dataset directory name.
var ErrInvalidName = errors.New("name has no usable characters")

// Person is one enrolled identity in the dataset directory.
type Person struct {
	// DirName is the sanitized directory name under the dataset root.
	DirName string
	// DisplayName is the real name, read from <dir>/<dir>.txt when present.
	DisplayName string
	// Images are the enrollment photo paths, sorted.
	Images []string
}

// Dataset is an on-disk layout of dataset/<person>/<person>_<n>.jpg photos
// plus a <person>.txt file holding the display name.
type Dataset struct {
	dir string
}

// NewDataset points at a dataset root. The directory does not need to exist
// yet.
func NewDataset(dir string) *Dataset {
	return &Dataset{dir: dir}
}

// CleanName converts a display name to its dataset directory name: keeps
// alphanumerics, dashes and underscores, turns spaces into underscores.
func CleanName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// Persons lists enrolled identities. A missing dataset root is an empty
// dataset, not an error.
func (d *Dataset) Persons() ([]Person, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read dataset dir: %w", err)
	}

	var persons []Person
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		personDir := filepath.Join(d.dir, entry.Name())
		files, err := os.ReadDir(personDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", personDir, err)
		}

		p := Person{DirName: entry.Name(), DisplayName: entry.Name()}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if strings.HasSuffix(f.Name(), ".jpg") {
				p.Images = append(p.Images, filepath.Join(personDir, f.Name()))
			}
		}
		sort.Strings(p.Images)

		nameFile := filepath.Join(personDir, entry.Name()+".txt")
		if data, err := os.ReadFile(nameFile); err == nil {
			if name := strings.TrimSpace(string(data)); name != "" {
				p.DisplayName = name
			}
		}

		if len(p.Images) > 0 {
			persons = append(persons, p)
		}
	}
	return persons, nil
}

// Enroll creates the directory for a new person and writes the display-name
// file. Returns the directory where enrollment photos should be stored.
func (d *Dataset) Enroll(name string) (string, error) {
	clean := CleanName(name)
	if clean == "" {
		return "", fmt.Errorf("enrolling %q: %w", name, ErrInvalidName)
	}

	personDir := filepath.Join(d.dir, clean)
	if err := os.MkdirAll(personDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create person dir: %w", err)
	}

	nameFile := filepath.Join(personDir, clean+".txt")
	if err := os.WriteFile(nameFile, []byte(name), 0o644); err != nil {
		return "", fmt.Errorf("failed to write name file: %w", err)
	}
	return personDir, nil
}

// NextImagePath returns the path for the next enrollment photo of a person,
// numbered after the existing ones.
func (d *Dataset) NextImagePath(name string) (string, error) {
	clean := CleanName(name)
	personDir := filepath.Join(d.dir, clean)

	n := 1
	entries, err := os.ReadDir(personDir)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read person dir: %w", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".jpg") {
			n++
		}
	}
	return filepath.Join(personDir, fmt.Sprintf("%s_%d.jpg", clean, n)), nil
}
