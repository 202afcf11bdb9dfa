// Package storage defines the vault file-system abstraction.
package storage

import "io"

// FileMeta is a lightweight description of one vault file.
type FileMeta struct {
	Path     string
	Checksum string
}

// Provider is the interface for vault file operations. All paths are
// relative to the vault root.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// WriteStream atomically streams r to path. Used for audio and
	// attachment downloads.
	WriteStream(path string, r io.Reader) error
	// Exists reports whether a file or directory exists at path.
	Exists(path string) bool
	// EnsureDir creates the directory at path (and parents) if missing.
	EnsureDir(path string) error
	// Delete removes the file at path.
	Delete(path string) error
}
