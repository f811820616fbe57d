// Package utils holds small filesystem helpers shared by the audio
// converter and the upload handler.
package utils

import (
	"fmt"
	"io"
	"os"
)

// MakeDir creates a directory with all parent directories
func MakeDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// MoveFile moves or renames a file
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move file from %s to %s: %w", src, dst, err)
	}
	return nil
}

// ReservePath creates an empty, uniquely named file in dir matching pattern
// (see os.CreateTemp) and returns its path. The caller owns the file.
func ReservePath(dir, pattern string) (string, error) {
	if err := MakeDir(dir); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// SaveStream copies r into a new uniquely named file in dir and returns its
// path and size. Nothing is left behind on failure.
func SaveStream(dir, pattern string, r io.Reader) (string, int64, error) {
	if err := MakeDir(dir); err != nil {
		return "", 0, err
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("failed to save %s: %w", f.Name(), err)
	}
	return f.Name(), n, nil
}
