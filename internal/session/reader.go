package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Decrypter reverses the line transform.
type Decrypter interface {
	Decrypt(text string) (string, error)
}

// LineError reports a line that could not be decrypted.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Scan decrypts r line by line and calls fn for each line. Lines that fail
// to decrypt are passed to onErr (when non-nil) and skipped; a bad line never
// stops the scan. Scan returns the first error from fn or from reading.
func Scan(r io.Reader, d Decrypter, fn func(n int, line string) error, onErr func(*LineError)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	n := 0
	for sc.Scan() {
		n++
		text := sc.Text()
		if text == "" {
			continue
		}
		plain, err := d.Decrypt(text)
		if err != nil {
			if onErr != nil {
				onErr(&LineError{Line: n, Err: err})
			}
			continue
		}
		if err := fn(n, plain); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	return nil
}

// ReadLines decrypts an entire log file. Undecodable lines are returned
// separately so callers can surface them.
func ReadLines(path string, d Decrypter) ([]string, []*LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var lines []string
	var bad []*LineError
	err = Scan(f, d, func(_ int, line string) error {
		lines = append(lines, line)
		return nil
	}, func(le *LineError) {
		bad = append(bad, le)
	})
	return lines, bad, err
}
