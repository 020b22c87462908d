package syncengine

import (
	"context"
	"os"
	"time"
)

// waitForStability blocks until path's mtime has stopped moving for at
// least delay (spec section 6: STABILITY_DELAY, "seconds to wait a
// file's mtime has stopped moving before accepting it as ready for
// copy"). Returns false if the file disappeared or the context was
// cancelled while waiting.
func waitForStability(ctx context.Context, path string, delay time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	lastMtime := info.ModTime()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		info, err := os.Stat(path)
		if err != nil {
			return false
		}

		if info.ModTime().Equal(lastMtime) {
			return true
		}

		lastMtime = info.ModTime()
	}
}

// creationInstant reports the file's creation time. Go's os.FileInfo
// exposes no portable birth-time field (ext4's btime isn't surfaced by
// the standard stat syscall wrapper), so CloudGather falls back to mtime
// uniformly rather than reaching for platform-specific syscalls — the
// documented choice for spec section 9's open question on
// delete_time_base=FILE_CREATE for files predating CloudGather's first
// observation of them.
func creationInstant(path string, mtime time.Time) time.Time {
	return mtime
}
