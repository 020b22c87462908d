package syncengine

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudgather/cloudgather/internal/store"
)

// mtimeTolerance is the slack applied to ruleMtimeNewer (spec section 4.3:
// "source.mtime > target.mtime + 1s tolerance").
const mtimeTolerance = 1 * time.Second

// extOf lowercases and strips the leading dot from a file name's
// extension. Extensionless files yield "".
func extOf(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}

	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// passesSuffix applies spec section 4.3 step 1.
func passesSuffix(name string, f store.SuffixFilter) bool {
	ext := extOf(name)

	switch f.Mode {
	case store.SuffixInclude:
		return containsExt(f.List, ext)
	case store.SuffixExclude:
		return !containsExt(f.List, ext)
	default:
		return true
	}
}

func containsExt(list []string, ext string) bool {
	for _, e := range list {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
			return true
		}
	}

	return false
}

// passesSize applies spec section 4.3 step 2: minBytes <= size <= maxBytes,
// open bounds when unset.
func passesSize(size int64, f store.SizeFilter) bool {
	if f.MinBytes != nil && size < *f.MinBytes {
		return false
	}

	if f.MaxBytes != nil && size > *f.MaxBytes {
		return false
	}

	return true
}

// fileState is the subset of local filesystem facts the decision rule
// needs about the target counterpart of a source file.
type fileState struct {
	exists bool
	size   int64
	mtime  time.Time
}

// shouldCopy applies spec section 4.3 step 3, the union-of-rules decision.
// If no rule flag is set, it behaves as ruleNotExists alone (spec's
// documented fallback for design note's open question on union vs single
// rule semantics).
func shouldCopy(rules store.RuleFlags, sourceSize int64, sourceMtime time.Time, target fileState) bool {
	none := !rules.NotExists && !rules.SizeDiff && !rules.MtimeNewer
	if none {
		return !target.exists
	}

	if rules.NotExists && !target.exists {
		return true
	}

	if rules.SizeDiff && target.exists && target.size != sourceSize {
		return true
	}

	if rules.MtimeNewer && target.exists && sourceMtime.After(target.mtime.Add(mtimeTolerance)) {
		return true
	}

	return false
}
