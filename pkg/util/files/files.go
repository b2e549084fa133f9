// Package files provides small filesystem helpers shared across the
// repackaging pipeline: existence checks, directory-preserving copies, and
// write-if-different semantics for build-directory outputs that are
// expected to be reused (and overwritten, never appended to) across runs.
package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func Exists(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return true, nil
	} else if os.IsNotExist(err) {
		return false, nil
	} else {
		return false, fmt.Errorf("failed to determine if %s exists: %w", path, err)
	}
}

func IsDir(path string) (bool, error) {
	file, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return file.Mode().IsDir(), nil
}

// CopyFile copies src to dest, creating dest's parent directory if needed.
// This is the workhorse for staging headers and object files into the
// scoped temp trees the libpython linker builds before invoking the
// native compiler driver.
func CopyFile(src string, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory of %s: %w", dest, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s while copying to %s: %w", src, dest, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s while copying %s: %w", dest, src, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dest, err)
	}
	return out.Close()
}

// WriteIfDifferent overwrites file with content only if the existing
// contents differ, so that the build directory's mtimes (and any
// downstream dependency tracking keyed on them) are left alone on a
// no-op rebuild.
func WriteIfDifferent(file, content string) error {
	if _, err := os.Stat(file); err == nil {
		bs, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if string(bs) == content {
			return nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return os.WriteFile(file, []byte(content), 0o644)
}
