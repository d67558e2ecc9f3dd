package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrChecksumMismatch = errors.New("store: saved log changed since it was recorded")

// FileChecksum returns the hex SHA-256 of a file's contents.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifySavedLog checks that the file at rec's source path still matches the
// checksum stored when it was saved. Records without a checksum always pass.
func VerifySavedLog(rec *SavedLog) error {
	if rec.Checksum == "" {
		return nil
	}
	sum, err := FileChecksum(rec.Info.SourcePath)
	if err != nil {
		return err
	}
	if sum != rec.Checksum {
		return fmt.Errorf("%w: %s: computed %s, expected %s", ErrChecksumMismatch, rec.Info.SourcePath, sum, rec.Checksum)
	}
	return nil
}

// VerifyAllSavedLogs checks every saved log and returns the session IDs whose
// files are missing or modified.
func (s *Store) VerifyAllSavedLogs() ([]string, error) {
	recs, err := s.ListSavedLogs(0)
	if err != nil {
		return nil, err
	}

	var bad []string
	for i := range recs {
		if err := VerifySavedLog(&recs[i]); err != nil {
			bad = append(bad, recs[i].SessionID)
		}
	}
	return bad, nil
}
