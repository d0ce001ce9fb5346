// Package store persists accepted scripts and the artifacts an execution
// produced. The default backend is the local working directory; an S3
// backend can mirror artifacts to object storage.
package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"simagent/internal/safeio"
)

// Local writes scripts and artifacts into the working directory.
type Local struct {
	fs *safeio.SafeFS
}

func NewLocal(fs *safeio.SafeFS) (*Local, error) {
	if fs == nil {
		return nil, fmt.Errorf("store: filesystem is required")
	}
	return &Local{fs: fs}, nil
}

// SaveScript writes the accepted source to a .m script file and returns
// its absolute path. The extension is appended when missing.
func (s *Local) SaveScript(name, source string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("store: script name is required")
	}
	if source == "" {
		return "", fmt.Errorf("store: empty script source")
	}
	if !strings.HasSuffix(name, ".m") {
		name += ".m"
	}
	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}
	if err := s.fs.SafeWriteFile(name, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("store: write script: %w", err)
	}
	return filepath.Join(s.fs.Root(), name), nil
}

// SaveArtifact persists one produced artifact (figure, result file) next to
// the script, keyed by its reference path, and returns the absolute path.
func (s *Local) SaveArtifact(ref string, data []byte) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("store: artifact reference is required")
	}
	if data == nil {
		data = []byte{}
	}
	rel := filepath.Join("artifacts", filepath.Base(ref))
	if err := s.fs.SafeWriteFile(rel, data, 0o644); err != nil {
		return "", fmt.Errorf("store: write artifact: %w", err)
	}
	return filepath.Join(s.fs.Root(), rel), nil
}

// Root returns the directory everything is written under.
func (s *Local) Root() string { return s.fs.Root() }
