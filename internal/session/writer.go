// Package session owns the destination file of an active recording session.
//
// A Writer encrypts each line and appends it to an exclusively locked file.
// Every WriteLine reaches the OS before it returns; with SyncFull it is also
// fsynced. Batching is not done here.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Errors
var (
	ErrSessionClosed = errors.New("session: writer is closed")
	ErrLocked        = errors.New("session: log file is locked by another writer")
	ErrMultiline     = errors.New("session: line contains a line break")
)

// DefaultSeparator frames header and footer blocks.
const DefaultSeparator = "----------"

// SyncMode controls fsync behaviour after each line.
type SyncMode string

const (
	SyncOff    SyncMode = "off"    // rely on OS buffering
	SyncNormal SyncMode = "normal" // fsync on block writes and close
	SyncFull   SyncMode = "full"   // fsync every line
)

// Encrypter is the line transform applied before persisting.
type Encrypter interface {
	Encrypt(line string) string
}

// Options tune a Writer.
type Options struct {
	Sync      SyncMode
	Separator string
}

// Writer appends cipher-encoded lines to a single file.
type Writer struct {
	mu sync.Mutex

	path   string
	file   *os.File
	cipher Encrypter
	opts   Options
	closed bool

	lines int64
	bytes int64
}

// Open creates (or appends to) the log at path and takes an exclusive lock.
func Open(path string, c Encrypter, opts Options) (*Writer, error) {
	if opts.Sync == "" {
		opts.Sync = SyncNormal
	}
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	if err := lockFile(file); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrLocked, path, err)
	}

	return &Writer{path: path, file: file, cipher: c, opts: opts}, nil
}

// WriteLine encrypts plain and appends it as one line.
func (w *Writer) WriteLine(plain string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.appendLocked(plain); err != nil {
		return err
	}
	if w.opts.Sync == SyncFull {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("sync line: %w", err)
		}
	}
	return nil
}

func (w *Writer) appendLocked(plain string) error {
	return w.appendBatchLocked([]string{plain})
}

// appendBatchLocked encrypts every line up front and hands the result to the
// file in a single write, so a rejected line leaves nothing behind.
func (w *Writer) appendBatchLocked(lines []string) error {
	if w.closed {
		return ErrSessionClosed
	}

	var buf strings.Builder
	for _, plain := range lines {
		if strings.ContainsAny(plain, "\r\n") {
			return ErrMultiline
		}
		buf.WriteString(w.cipher.Encrypt(plain))
		buf.WriteByte('\n')
	}

	n, err := w.file.WriteString(buf.String())
	w.bytes += int64(n)
	if err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	w.lines += int64(len(lines))
	return nil
}

// WriteLines appends lines in order with one write call.
func (w *Writer) WriteLines(lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.appendBatchLocked(lines); err != nil {
		return err
	}
	if w.opts.Sync == SyncFull {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("sync lines: %w", err)
		}
	}
	return nil
}

// WriteBlock writes lines framed by separator lines, e.g. a settings header.
// The block is written as one batch.
func (w *Writer) WriteBlock(lines []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	block := make([]string, 0, len(lines)+2)
	block = append(block, w.opts.Separator)
	block = append(block, lines...)
	block = append(block, w.opts.Separator)

	if err := w.appendBatchLocked(block); err != nil {
		return err
	}
	if w.opts.Sync != SyncOff {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("sync block: %w", err)
		}
	}
	return nil
}

// Close unlocks and closes the file. It is safe to call more than once; only
// the first call does any work.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if w.opts.Sync != SyncOff {
		if err := w.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log: %w", err))
		}
	}
	if err := unlockFile(w.file); err != nil {
		errs = append(errs, fmt.Errorf("unlock log: %w", err))
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close log: %w", err))
	}
	return errors.Join(errs...)
}

// Path returns the destination path.
func (w *Writer) Path() string {
	return w.path
}

// Separator returns the block separator line.
func (w *Writer) Separator() string {
	return w.opts.Separator
}

// Stats returns the number of lines and bytes written so far.
func (w *Writer) Stats() (lines, bytes int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines, w.bytes
}
