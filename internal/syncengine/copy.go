package syncengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/cloudgather/cloudgather/internal/cgerrors"
)

// cgpartSuffix marks an in-progress copy's temp file (spec section 4.3:
// "write to a sibling temp path <name>.cgpart").
const cgpartSuffix = ".cgpart"

const (
	normalBaseBackoff = 1 * time.Second
	normalMaxBackoff  = 30 * time.Second
	slowBaseBackoff   = 5 * time.Second
	slowMaxBackoff    = 30 * time.Second
	slowCopyTimeout   = 10 * time.Minute
)

// copyFile copies src to dst atomically: writes to dst+".cgpart", flushes,
// closes, preserves mtime, then renames into place. On rename failure the
// temp file is removed and the copy is reported failed. Retries up to
// attempts times with exponential backoff; under slowStorage the initial
// backoff is wider and a per-attempt wall-clock timeout is imposed.
func copyFile(ctx context.Context, src, dst string, srcSize int64, srcMtime time.Time, attempts int, slowStorage bool) error {
	base, cap := normalBaseBackoff, normalMaxBackoff
	if slowStorage {
		base, cap = slowBaseBackoff, slowMaxBackoff
	}

	b := retry.WithMaxRetries(uint64(maxInt(attempts, 0)), retry.NewExponential(base))
	b = retry.WithCappedDuration(cap, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		attemptCtx := ctx
		var cancel context.CancelFunc

		if slowStorage {
			attemptCtx, cancel = context.WithTimeout(ctx, slowCopyTimeout)
			defer cancel()
		}

		if err := copyOnce(attemptCtx, src, dst, srcMtime); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return err // caller-level cancellation, not retryable
			}

			return retry.RetryableError(err)
		}

		return nil
	})
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}

// copyOnce performs a single copy attempt with no retry.
func copyOnce(ctx context.Context, src, dst string, srcMtime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("%w: creating target directory: %v", cgerrors.ErrCopyFailed, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: opening source: %v", cgerrors.ErrCopyFailed, err)
	}
	defer in.Close()

	tempPath := dst + cgpartSuffix

	out, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", cgerrors.ErrCopyFailed, err)
	}

	succeeded := false
	defer func() {
		if !succeeded {
			out.Close()
			os.Remove(tempPath)
		}
	}()

	// Copy in chunks so a cancelled or timed-out ctx stops the attempt.
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := io.CopyN(out, in, 1<<20); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return fmt.Errorf("%w: copying bytes: %v", cgerrors.ErrCopyFailed, err)
		}
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("%w: syncing temp file: %v", cgerrors.ErrCopyFailed, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", cgerrors.ErrCopyFailed, err)
	}

	if !srcMtime.IsZero() {
		if err := os.Chtimes(tempPath, srcMtime, srcMtime); err != nil {
			return fmt.Errorf("%w: preserving mtime: %v", cgerrors.ErrCopyFailed, err)
		}
	}

	if err := os.Rename(tempPath, dst); err != nil {
		return fmt.Errorf("%w: renaming into place: %v", cgerrors.ErrCopyFailed, err)
	}

	succeeded = true

	return nil
}

// cleanupStalePartFiles removes .cgpart files left under root from a prior
// crash, so subsequent runs do not mistake them for completed copies (spec
// section 4.3: "Partial writes on crash are discovered by the .cgpart
// suffix and cleaned at next run start"; spec section 8's testable
// property: "for every .cgpart temp file left on disk at process start,
// there is no corresponding cache entry claiming SYNCED for that final
// name").
func cleanupStalePartFiles(root string) (removed int, err error) {
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort cleanup, a walk error on one entry shouldn't abort the rest
		}

		if d.IsDir() {
			return nil
		}

		if filepath.Ext(path) == cgpartSuffix {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}

		return nil
	})

	return removed, walkErr
}
