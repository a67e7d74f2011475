package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Disk is a FileStore on the local filesystem. With a root, paths are
// resolved relative to it and List returns root-relative slash paths. With
// an empty root, paths are used as given.
type Disk struct {
	root string
}

// NewDisk creates a Disk store rooted at root.
func NewDisk(root string) *Disk {
	return &Disk{root: root}
}

// Root returns the store's root directory.
func (d *Disk) Root() string { return d.root }

// Abs returns the filesystem path for a store path.
func (d *Disk) Abs(p string) string {
	if d.root == "" {
		return filepath.FromSlash(p)
	}
	p = strings.TrimPrefix(filepath.ToSlash(p), "/")
	return filepath.Join(d.root, filepath.FromSlash(p))
}

func (d *Disk) Read(p string) (string, error) {
	data, err := os.ReadFile(d.Abs(p))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return string(data), nil
}

func (d *Disk) Write(p, text string) error {
	full := d.Abs(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", p, err)
	}
	if err := os.WriteFile(full, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func (d *Disk) Remove(p string) error {
	if err := os.Remove(d.Abs(p)); err != nil {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

func (d *Disk) Mkdir(p string) error {
	if err := os.MkdirAll(d.Abs(p), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}
	return nil
}

func (d *Disk) Rmdir(p string, recursive bool) error {
	var err error
	if recursive {
		err = os.RemoveAll(d.Abs(p))
	} else {
		err = os.Remove(d.Abs(p))
	}
	if err != nil {
		return fmt.Errorf("rmdir %s: %w", p, err)
	}
	return nil
}

func (d *Disk) List(folder string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(d.Abs(folder), func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			return nil
		}
		if d.root == "" {
			paths = append(paths, path)
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (d *Disk) Stat(p string) (time.Time, error) {
	info, err := os.Stat(d.Abs(p))
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", p, err)
	}
	return info.ModTime(), nil
}

func (d *Disk) Exists(p string) (bool, error) {
	_, err := os.Stat(d.Abs(p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", p, err)
}
