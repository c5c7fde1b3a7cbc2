package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies src to dst and syncs dst to disk. dst is created with
// src's permissions and must not already exist.
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return n, fmt.Errorf("failed to copy %s: %w", filepath.Base(src), err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return n, fmt.Errorf("failed to sync %s: %w", filepath.Base(dst), err)
	}
	return n, out.Close()
}

// RetryableCopy copies a file with retry logic
func RetryableCopy(src, dst string, cfg *RetryConfig) (int64, error) {
	return RetryWithBackoff(cfg, func() (int64, error) {
		return CopyFile(src, dst)
	}, fmt.Sprintf("copy(%s -> %s)", src, dst))
}

// FileExists reports whether path exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
