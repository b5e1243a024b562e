package postprocess

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/franz/albumhound/internal/util"
)

const copyBufferSize = 128 * 1024

// copyFile copies a file atomically using a .part temporary file
func copyFile(ctx context.Context, srcPath, destPath string, retry *util.RetryConfig) (int64, error) {
	if err := util.RetryableMkdirAll(filepath.Dir(destPath), 0755, retry); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := util.RetryableOpen(srcPath, retry)
	if err != nil {
		return 0, fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	tempPath := destPath + ".part"
	dest, err := util.RetryableCreate(tempPath, retry)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := copyWithContext(ctx, dest, src)
	if cerr := dest.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		util.RetryableRemove(tempPath, retry)
		return 0, fmt.Errorf("failed to copy: %w", err)
	}

	if err := util.RetryableRename(tempPath, destPath, retry); err != nil {
		util.RetryableRemove(tempPath, retry)
		return 0, fmt.Errorf("failed to rename: %w", err)
	}

	util.DebugLog("Copied: %s -> %s (%s)", srcPath, destPath, util.FormatBytes(written))
	return written, nil
}

// moveFile renames a file, falling back to copy, verify and delete when
// source and destination are on different filesystems
func moveFile(ctx context.Context, srcPath, destPath string, retry *util.RetryConfig) (int64, error) {
	if err := util.RetryableMkdirAll(filepath.Dir(destPath), 0755, retry); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.Rename(srcPath, destPath); err == nil {
		if stat, err := os.Stat(destPath); err == nil {
			return stat.Size(), nil
		}
		return 0, nil
	}

	stat, err := util.RetryableStat(srcPath, retry)
	if err != nil {
		return 0, fmt.Errorf("failed to stat source: %w", err)
	}
	written, err := copyFile(ctx, srcPath, destPath, retry)
	if err != nil {
		return 0, err
	}
	if ok, err := verifySize(destPath, stat.Size()); err != nil || !ok {
		return 0, fmt.Errorf("verification failed before deleting source %s", srcPath)
	}

	if err := util.RetryableRemove(srcPath, retry); err != nil {
		util.WarnLog("Failed to delete source file %s: %v", srcPath, err)
	}
	util.DebugLog("Moved: %s -> %s", srcPath, destPath)
	return written, nil
}

func verifySize(path string, expected int64) (bool, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return stat.Size() == expected, nil
}

// copyWithContext copies data with context cancellation support
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if er == io.EOF {
			return written, nil
		}
		if er != nil {
			return written, er
		}
	}
}
