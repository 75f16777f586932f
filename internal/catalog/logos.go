package catalog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"billable/internal/core"
)

// LogoURLPrefix is where logos are served over HTTP.
const LogoURLPrefix = "/api/logos/"

// LogoStore keeps one logo per client as {client_id}_{filename} in a
// single directory.
type LogoStore struct {
	dir string
}

func NewLogoStore(dir string) (*LogoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create logo directory: %v", core.ErrIOFailure, err)
	}
	return &LogoStore{dir: dir}, nil
}

// Save writes the logo and removes the previous one of the client. It
// returns the URL path the logo is served from.
func (s *LogoStore) Save(clientID, filename string, body io.Reader) (string, error) {
	name := SanitizeFilename(clientID + "_" + filename)
	if SanitizeFilename(filename) == "" || !strings.HasPrefix(name, SanitizeFilename(clientID)+"_") {
		return "", fmt.Errorf("%w: invalid logo filename %q", core.ErrValidation, filename)
	}

	if err := s.Remove(clientID); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("%w: create logo: %v", core.ErrIOFailure, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: write logo: %v", core.ErrIOFailure, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: close logo: %v", core.ErrIOFailure, err)
	}
	return LogoURLPrefix + name, nil
}

// Find returns the file name of the client's logo, or "" if it has none.
func (s *LogoStore) Find(clientID string) (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", core.ErrIOFailure, err)
	}
	prefix := SanitizeFilename(clientID) + "_"
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			return e.Name(), nil
		}
	}
	return "", nil
}

// Remove deletes the client's logo if present.
func (s *LogoStore) Remove(clientID string) error {
	name, err := s.Find(clientID)
	if err != nil || name == "" {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove logo: %v", core.ErrIOFailure, err)
	}
	return nil
}

// Path resolves a served file name to its location on disk.
func (s *LogoStore) Path(filename string) (string, error) {
	if filename == "" || filename != SanitizeFilename(filename) {
		return "", fmt.Errorf("%w: logo %q", core.ErrNotFound, filename)
	}
	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: logo %q", core.ErrNotFound, filename)
	}
	return path, nil
}

// SanitizeFilename keeps ASCII letters, digits, dot, dash and underscore,
// turns whitespace into underscores and strips leading dots.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		case r == ' ', r == '\t':
			return '_'
		}
		return -1
	}, name)
	return strings.TrimLeft(name, "._")
}
