// Package storage provides the JSON-document persistence layer for Forest:
// per-project and per-path file load/save with an in-memory cache, per-file
// advisory locks, and an in-process transaction mechanism with
// backup-on-write and rollback semantics.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// PersistenceError wraps an I/O failure with the operation and path that
// produced it, so callers can report what was being attempted.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DataPersistence manages the directory tree of JSON documents under dataDir.
// The lock registry and cache are instance-owned, so multiple data
// directories can coexist in one process (and tests stay isolated).
type DataPersistence struct {
	dataDir string

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	cacheMu sync.RWMutex
	cache   map[string][]byte
}

// NewDataPersistence creates a DataPersistence rooted at dataDir.
func NewDataPersistence(dataDir string) *DataPersistence {
	return &DataPersistence{
		dataDir: dataDir,
		locks:   make(map[string]*sync.Mutex),
		cache:   make(map[string][]byte),
	}
}

// DataDir returns the root directory this instance persists under.
func (p *DataPersistence) DataDir() string { return p.dataDir }

// validateComponent rejects empty or path-escaping name components before
// any I/O happens.
func validateComponent(kind, name string) error {
	if name == "" {
		return fmt.Errorf("invalid %s: must not be empty", kind)
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid %s %q: must not contain path separators", kind, name)
	}
	return nil
}

// ProjectFilePath returns the absolute path of a project-scoped document.
func (p *DataPersistence) ProjectFilePath(projectID, fileName string) string {
	return filepath.Join(p.dataDir, "projects", projectID, fileName)
}

// PathFilePath returns the absolute path of a path-scoped document. The
// "general" path is conventionally stored at the project scope instead of
// under paths/general/.
func (p *DataPersistence) PathFilePath(projectID, pathName, fileName string) string {
	if pathName == "" || pathName == "general" {
		return p.ProjectFilePath(projectID, fileName)
	}
	return filepath.Join(p.dataDir, "projects", projectID, "paths", pathName, fileName)
}

// StateFilePath returns the absolute path of the data-directory-level state
// document (active project pointer).
func (p *DataPersistence) StateFilePath() string {
	return filepath.Join(p.dataDir, "config.json")
}

// fileLock returns the mutex guarding a single document path, creating it on
// first use.
func (p *DataPersistence) fileLock(path string) *sync.Mutex {
	p.lockMu.Lock()
	defer p.lockMu.Unlock()
	mu, ok := p.locks[path]
	if !ok {
		mu = &sync.Mutex{}
		p.locks[path] = mu
	}
	return mu
}

// LoadProjectData loads a project-scoped document into out. It returns
// (false, nil) when the file does not exist: a missing document is the
// normal new-project state, not an error.
func (p *DataPersistence) LoadProjectData(projectID, fileName string, out any) (bool, error) {
	if err := validateComponent("project id", projectID); err != nil {
		return false, err
	}
	if err := validateComponent("file name", fileName); err != nil {
		return false, err
	}
	return p.loadFile(p.ProjectFilePath(projectID, fileName), out)
}

// LoadPathData loads a path-scoped document into out, with the same
// missing-file semantics as LoadProjectData.
func (p *DataPersistence) LoadPathData(projectID, pathName, fileName string, out any) (bool, error) {
	if err := validateComponent("project id", projectID); err != nil {
		return false, err
	}
	if pathName != "" && pathName != "general" {
		if err := validateComponent("path name", pathName); err != nil {
			return false, err
		}
	}
	if err := validateComponent("file name", fileName); err != nil {
		return false, err
	}
	return p.loadFile(p.PathFilePath(projectID, pathName, fileName), out)
}

// LoadState loads the data-directory state document. Missing file returns
// (false, nil).
func (p *DataPersistence) LoadState(out any) (bool, error) {
	return p.loadFile(p.StateFilePath(), out)
}

func (p *DataPersistence) loadFile(path string, out any) (bool, error) {
	raw, found, err := p.readThrough(path)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, &PersistenceError{Op: "parse", Path: path, Err: err}
	}
	return true, nil
}

// readThrough returns the cached bytes for path, reading from disk and
// filling the cache on a miss. The fill happens under the per-file lock; a
// save landing between the disk read and the cache store would otherwise
// leave stale bytes cached until the next write.
func (p *DataPersistence) readThrough(path string) ([]byte, bool, error) {
	p.cacheMu.RLock()
	cached, ok := p.cache[path]
	p.cacheMu.RUnlock()
	if ok {
		return cached, true, nil
	}

	mu := p.fileLock(path)
	mu.Lock()
	defer mu.Unlock()

	// Another reader may have filled the entry while we waited for the lock.
	p.cacheMu.RLock()
	cached, ok = p.cache[path]
	p.cacheMu.RUnlock()
	if ok {
		return cached, true, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, &PersistenceError{Op: "load", Path: path, Err: err}
	}
	raw := Canonicalize(data)
	p.cacheMu.Lock()
	p.cache[path] = raw
	p.cacheMu.Unlock()
	return raw, true, nil
}

// SaveProjectData saves a project-scoped document. When tx is non-nil the
// write is staged under the transaction instead of hitting the final path.
func (p *DataPersistence) SaveProjectData(projectID, fileName string, data any, tx *Transaction) error {
	if err := validateComponent("project id", projectID); err != nil {
		return err
	}
	if err := validateComponent("file name", fileName); err != nil {
		return err
	}
	return p.saveFile(p.ProjectFilePath(projectID, fileName), data, tx)
}

// SavePathData saves a path-scoped document, optionally under a transaction.
func (p *DataPersistence) SavePathData(projectID, pathName, fileName string, data any, tx *Transaction) error {
	if err := validateComponent("project id", projectID); err != nil {
		return err
	}
	if pathName != "" && pathName != "general" {
		if err := validateComponent("path name", pathName); err != nil {
			return err
		}
	}
	if err := validateComponent("file name", fileName); err != nil {
		return err
	}
	return p.saveFile(p.PathFilePath(projectID, pathName, fileName), data, tx)
}

// SaveState saves the data-directory state document.
func (p *DataPersistence) SaveState(data any, tx *Transaction) error {
	return p.saveFile(p.StateFilePath(), data, tx)
}

// saveFile serializes data (pretty-printed, two-space indent) and either
// writes it directly or stages it under the given transaction. The per-file
// lock is held for the duration of the single save call, so two concurrent
// saves of the same document cannot interleave partial writes.
func (p *DataPersistence) saveFile(path string, data any, tx *Transaction) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "marshal", Path: path, Err: err}
	}
	content = append(content, '\n')

	mu := p.fileLock(path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}

	if tx != nil {
		return tx.stage(path, content)
	}

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	// Invalidate only after the write succeeded; an in-flight read must see
	// either the old content or the new, never a gap.
	p.invalidate(path)
	return nil
}

// invalidate drops the cache entry for a single path.
func (p *DataPersistence) invalidate(path string) {
	p.cacheMu.Lock()
	delete(p.cache, path)
	p.cacheMu.Unlock()
}

// ClearCache drops every cached document. Intended for tests and operator
// reset.
func (p *DataPersistence) ClearCache() {
	p.cacheMu.Lock()
	p.cache = make(map[string][]byte)
	p.cacheMu.Unlock()
}

// ListProjects returns the ids of all projects present under the data
// directory, sorted by directory order.
func (p *DataPersistence) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.dataDir, "projects"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &PersistenceError{Op: "list", Path: filepath.Join(p.dataDir, "projects"), Err: err}
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
