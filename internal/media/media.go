// Package media stores uploaded event images and hands back the public URL
// clients embed in event listings.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Uploader persists an image payload and returns its public URL.
type Uploader interface {
	Store(data []byte, ext string) (url string, err error)
	Remove(url string) error
}

// Filesystem writes images beneath a local directory and serves them under
// publicBase (e.g. "https://api.pledgeit.org/uploads").
type Filesystem struct {
	dir        string
	publicBase string
}

func NewFilesystem(dir, publicBase string) (*Filesystem, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Filesystem{dir: dir, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

// Store writes the payload under a random name. The caller validated the
// extension against the declared content type already.
func (f *Filesystem) Store(data []byte, ext string) (string, error) {
	name := uuid.New().String() + ext
	if err := os.WriteFile(filepath.Join(f.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return f.publicBase + "/" + name, nil
}

// Remove deletes the file backing a previously stored URL. A URL outside the
// public base is ignored so external image links survive event deletion.
func (f *Filesystem) Remove(url string) error {
	rest, ok := strings.CutPrefix(url, f.publicBase+"/")
	if !ok {
		return nil
	}
	name := filepath.Base(rest)
	if err := os.Remove(filepath.Join(f.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

// Discard accepts uploads without persisting them; used in tests and when no
// upload directory is configured.
type Discard struct{}

func (Discard) Store(data []byte, ext string) (string, error) {
	return "memory://" + uuid.New().String() + ext, nil
}

func (Discard) Remove(string) error { return nil }
