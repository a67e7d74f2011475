package vault

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

type memFile struct {
	text string
	mod  time.Time
}

// Memory is an in-memory FileStore. Every write advances a logical clock by
// one second so modification times are strictly ordered.
type Memory struct {
	mu       sync.RWMutex
	files    map[string]memFile
	dirs     map[string]bool
	now      time.Time
	failures map[string]error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		files:    make(map[string]memFile),
		dirs:     make(map[string]bool),
		now:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		failures: make(map[string]error),
	}
}

func clean(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func (m *Memory) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

// SetModTime overrides the modification time of an existing file.
func (m *Memory) SetModTime(p string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	if f, ok := m.files[p]; ok {
		f.mod = t
		m.files[p] = f
	}
}

// FailRead makes every Read of p return err.
func (m *Memory) FailRead(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[clean(p)] = err
}

func (m *Memory) mkdirLocked(p string) {
	for p != "" && p != "." {
		m.dirs[p] = true
		p = path.Dir(p)
		if p == "." {
			return
		}
	}
}

func (m *Memory) Read(p string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p = clean(p)
	if err := m.failures[p]; err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	f, ok := m.files[p]
	if !ok {
		return "", fmt.Errorf("read %s: %w", p, ErrNotExist)
	}
	return f.text, nil
}

func (m *Memory) Write(p, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	m.mkdirLocked(path.Dir(p))
	m.files[p] = memFile{text: text, mod: m.tick()}
	return nil
}

func (m *Memory) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	if _, ok := m.files[p]; !ok {
		return fmt.Errorf("remove %s: %w", p, ErrNotExist)
	}
	delete(m.files, p)
	return nil
}

func (m *Memory) Mkdir(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirLocked(clean(p))
	return nil
}

func (m *Memory) Rmdir(p string, recursive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	prefix := p + "/"
	var children []string
	for f := range m.files {
		if strings.HasPrefix(f, prefix) {
			children = append(children, f)
		}
	}
	for d := range m.dirs {
		if strings.HasPrefix(d, prefix) {
			children = append(children, d)
		}
	}
	if len(children) > 0 && !recursive {
		return fmt.Errorf("rmdir %s: folder not empty", p)
	}
	for _, c := range children {
		delete(m.files, c)
		delete(m.dirs, c)
	}
	delete(m.dirs, p)
	return nil
}

func (m *Memory) List(folder string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	folder = clean(folder)
	prefix := folder + "/"
	if folder == "" {
		prefix = ""
	}
	var paths []string
	for f := range m.files {
		if strings.HasPrefix(f, prefix) {
			paths = append(paths, f)
		}
	}
	if len(paths) == 0 && folder != "" && !m.dirs[folder] {
		return nil, fmt.Errorf("list %s: %w", folder, ErrNotExist)
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *Memory) Stat(p string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[clean(p)]
	if !ok {
		return time.Time{}, fmt.Errorf("stat %s: %w", p, ErrNotExist)
	}
	return f.mod, nil
}

func (m *Memory) Exists(p string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p = clean(p)
	_, ok := m.files[p]
	return ok || m.dirs[p], nil
}
