package deleteplan

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// AscendAndRemove walks upward from startDir toward root, removing each
// directory in turn, for at most maxLevels steps. A directory is removed
// only if it is within root and either empty or forceNonempty is set; the
// walk stops at the first directory that vetoes removal, at root, or after
// maxLevels steps — whichever comes first (spec section 4.3: "Deletions of
// directories proceed from leaf upward by at most deleteParentLevels
// levels; a parent directory is removed only if it is within the task's
// source root and either empty or forceDeleteNonempty is set; files not
// yet due for deletion always veto their parent's removal").
//
// Grounded on the bottom-up ascend-and-stop-at-boundary shape of
// file-maintenance's cleanupEmptyDirs, generalized with a step budget and
// a force-nonempty escape hatch this engine's spec requires.
func AscendAndRemove(startDir, root string, maxLevels int, forceNonempty bool) (removed int) {
	cur := startDir
	absRoot, err := filepath.Abs(root)

	if err != nil {
		return 0
	}

	for level := 0; level < maxLevels; level++ {
		absCur, err := filepath.Abs(cur)
		if err != nil {
			return removed
		}

		if !withinRoot(absCur, absRoot) || absCur == absRoot {
			return removed
		}

		empty, err := isDirEmpty(absCur)
		if err != nil {
			return removed
		}

		if !empty && !forceNonempty {
			return removed
		}

		if !empty && forceNonempty {
			if err := os.RemoveAll(absCur); err != nil {
				return removed
			}
		} else if err := os.Remove(absCur); err != nil {
			return removed
		}

		removed++
		cur = filepath.Dir(absCur)
	}

	return removed
}

func withinRoot(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != ".." && rel != "." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}

func isDirEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}

	if err != nil {
		return false, err
	}

	return false, nil
}
