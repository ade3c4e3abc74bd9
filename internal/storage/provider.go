// Package storage defines the root-scoped file-system abstraction used for every
// write, move, and delete the pipeline performs.
package storage

import "io/fs"

// Provider is the interface for file operations under one root. Paths may be
// relative to the root or absolute paths inside it.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Resolve returns the absolute form of path, rejecting paths outside the root.
	Resolve(path string) (string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
	// Exists reports whether path exists.
	Exists(path string) bool
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Copy duplicates src to dst, preserving the modification time.
	Copy(src, dst string) error
}
