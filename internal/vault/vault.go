// Package vault is the file-store capability the scanner and builders
// operate on. Paths are slash separated; a leading slash is ignored when the
// store has a root.
package vault

import (
	"io/fs"
	"time"
)

// ErrNotExist is returned (wrapped) for missing files and folders.
var ErrNotExist = fs.ErrNotExist

// FileStore is the set of file operations the engine needs.
type FileStore interface {
	Read(path string) (string, error)
	// Write replaces the file content, creating parent folders as needed.
	Write(path, text string) error
	Remove(path string) error
	// Mkdir creates path and any missing parents.
	Mkdir(path string) error
	Rmdir(path string, recursive bool) error
	// List returns every file below folder, recursively, sorted.
	List(folder string) ([]string, error)
	Stat(path string) (time.Time, error)
	Exists(path string) (bool, error)
}
