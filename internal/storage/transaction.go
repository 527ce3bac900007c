package storage

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Operation records one intended write within a transaction, for audit and
// validation.
type Operation struct {
	Type string
	Path string
	At   time.Time
}

// backup holds a destination file's prior content. Content is nil when the
// file did not exist before the transaction touched it.
type backup struct {
	content []byte
	existed bool
}

type stagedWrite struct {
	tempPath  string
	finalPath string
}

// Transaction provides all-or-nothing semantics across one or more document
// writes without a database engine: every save performed with a transaction
// backs up the destination's prior content and stages the new content to a
// temp path; Commit promotes the staged files, Rollback restores the
// backups. Transactions are in-process only; they do not provide
// cross-process locking.
type Transaction struct {
	ID         string
	StartTime  time.Time
	Operations []Operation

	persistence *DataPersistence
	backups     map[string]*backup
	staged      []stagedWrite
	validators  []func() error
	finished    bool
}

// BeginTransaction starts a new transaction against this persistence
// instance.
func (p *DataPersistence) BeginTransaction() *Transaction {
	return &Transaction{
		ID:          uuid.NewString(),
		StartTime:   time.Now().UTC(),
		persistence: p,
		backups:     make(map[string]*backup),
	}
}

// AddValidator registers a check that must pass before Commit promotes any
// staged write.
func (tx *Transaction) AddValidator(fn func() error) {
	tx.validators = append(tx.validators, fn)
}

// stage snapshots the destination's current content (or records that it did
// not exist), writes the new content to a temp path next to the
// destination, and logs the intended write.
func (tx *Transaction) stage(path string, content []byte) error {
	if tx.finished {
		return fmt.Errorf("transaction %s: already finished", tx.ID)
	}

	if _, seen := tx.backups[path]; !seen {
		prior, err := os.ReadFile(path)
		switch {
		case err == nil:
			tx.backups[path] = &backup{content: prior, existed: true}
		case os.IsNotExist(err):
			tx.backups[path] = &backup{existed: false}
		default:
			return &PersistenceError{Op: "backup", Path: path, Err: err}
		}
	}

	// A repeated save of the same path replaces the staged content in
	// place; commit must rename each final path exactly once.
	for _, sw := range tx.staged {
		if sw.finalPath == path {
			if err := os.WriteFile(sw.tempPath, content, 0o600); err != nil {
				return &PersistenceError{Op: "stage", Path: sw.tempPath, Err: err}
			}
			tx.Operations = append(tx.Operations, Operation{
				Type: "save",
				Path: path,
				At:   time.Now().UTC(),
			})
			return nil
		}
	}

	tempPath := path + ".stage-" + tx.ID
	if err := os.WriteFile(tempPath, content, 0o600); err != nil {
		return &PersistenceError{Op: "stage", Path: tempPath, Err: err}
	}

	tx.staged = append(tx.staged, stagedWrite{tempPath: tempPath, finalPath: path})
	tx.Operations = append(tx.Operations, Operation{
		Type: "save",
		Path: path,
		At:   time.Now().UTC(),
	})
	return nil
}

// CommitTransaction runs the registered validators, promotes every staged
// temp file to its final path, and clears the transaction state. Any
// failure triggers an automatic rollback before the error is returned.
func (p *DataPersistence) CommitTransaction(tx *Transaction) error {
	if tx.finished {
		return fmt.Errorf("transaction %s: already finished", tx.ID)
	}

	for _, validate := range tx.validators {
		if err := validate(); err != nil {
			rbErr := p.RollbackTransaction(tx)
			if rbErr != nil {
				return fmt.Errorf("transaction %s: validation failed: %w (rollback: %v)", tx.ID, err, rbErr)
			}
			return fmt.Errorf("transaction %s: validation failed: %w", tx.ID, err)
		}
	}

	for i, sw := range tx.staged {
		mu := p.fileLock(sw.finalPath)
		mu.Lock()
		err := os.Rename(sw.tempPath, sw.finalPath)
		if err == nil {
			p.invalidate(sw.finalPath)
		}
		mu.Unlock()
		if err != nil {
			// Undo the renames already applied along with everything else.
			tx.staged = tx.staged[i:]
			rbErr := p.RollbackTransaction(tx)
			commitErr := &PersistenceError{Op: "commit", Path: sw.finalPath, Err: err}
			if rbErr != nil {
				return fmt.Errorf("%w (rollback: %v)", commitErr, rbErr)
			}
			return commitErr
		}
	}

	tx.staged = nil
	tx.backups = make(map[string]*backup)
	tx.Operations = nil
	tx.finished = true
	return nil
}

// RollbackTransaction restores every backed-up file to its prior
// content (or absence), deletes staged temp files, and invalidates the
// cache entries the transaction touched. Per-file failures are collected
// rather than aborting early, and a second rollback of the same
// transaction is a no-op.
func (p *DataPersistence) RollbackTransaction(tx *Transaction) error {
	if tx.finished {
		return nil
	}

	var errs []error

	for path, b := range tx.backups {
		mu := p.fileLock(path)
		mu.Lock()
		if b.existed {
			if err := os.WriteFile(path, b.content, 0o600); err != nil {
				errs = append(errs, &PersistenceError{Op: "restore", Path: path, Err: err})
			}
		} else {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				errs = append(errs, &PersistenceError{Op: "restore", Path: path, Err: err})
			}
		}
		p.invalidate(path)
		mu.Unlock()
	}

	for _, sw := range tx.staged {
		if err := os.Remove(sw.tempPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, &PersistenceError{Op: "unstage", Path: sw.tempPath, Err: err})
		}
	}

	tx.staged = nil
	tx.backups = make(map[string]*backup)
	tx.Operations = nil
	tx.finished = true

	if len(errs) > 0 {
		return fmt.Errorf("rolling back transaction %s: %w", tx.ID, errors.Join(errs...))
	}
	return nil
}
