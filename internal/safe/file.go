// Package safe provides bounded, symlink-aware file access.
package safe

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultMaxFileSize is the default maximum file size for safe file operations (1MB).
const DefaultMaxFileSize = 1 << 20

// Options configures Check and ReadFile.
type Options struct {
	// MaxSize is the maximum allowed file size in bytes. Zero means DefaultMaxFileSize.
	MaxSize int64
	// AllowSymlinks allows symlinked paths. Default is false for security.
	AllowSymlinks bool
}

// Check validates that path names a regular file within the size limit and
// returns its info. Symlinks are rejected unless allowed, and followed when
// they are.
func Check(path string, opts *Options) (os.FileInfo, error) {
	if opts == nil {
		opts = &Options{}
	}
	maxSize := opts.MaxSize
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}

	cleanPath := filepath.Clean(path)

	// Check file info without following symlinks.
	info, err := os.Lstat(cleanPath)
	if err != nil {
		return nil, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if !opts.AllowSymlinks {
			return nil, fmt.Errorf("file %q is a symlink, which is not allowed for security reasons", path)
		}
		info, err = os.Stat(cleanPath)
		if err != nil {
			return nil, err
		}
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("path %q is not a regular file", path)
	}

	if info.Size() > maxSize {
		return nil, fmt.Errorf("file %q exceeds maximum allowed size of %d bytes", path, maxSize)
	}
	return info, nil
}

// ReadFile reads a file after validating it with Check.
func ReadFile(path string, opts *Options) ([]byte, error) {
	if _, err := Check(path, opts); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Clean(path))
}
