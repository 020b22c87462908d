package strmengine

import (
	"path/filepath"
	"strings"

	"github.com/cloudgather/cloudgather/internal/store"
)

// fileClass is the classification of a remote file under spec section
// 4.4's global extension tables.
type fileClass string

const (
	classVideo    fileClass = "video"
	classSubtitle fileClass = "subtitle"
	classImage    fileClass = "image"
	classNfo      fileClass = "nfo"
	classIgnored  fileClass = "ignored"
)

func extOf(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}

	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func inList(list []string, ext string) bool {
	for _, e := range list {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
			return true
		}
	}

	return false
}

// classify assigns a remote file to one of the global extension classes
// (spec section 4.4: "video extensions → target of .strm generation;
// subtitle/image/nfo → copied locally if the corresponding extra-file
// flag is set; others ignored").
func classify(name string, classes store.ExtensionClasses) fileClass {
	ext := extOf(name)

	switch {
	case inList(classes.Video, ext):
		return classVideo
	case inList(classes.Subtitle, ext):
		return classSubtitle
	case inList(classes.Image, ext):
		return classImage
	case inList(classes.Nfo, ext):
		return classNfo
	default:
		return classIgnored
	}
}

// passesSuffix mirrors syncengine's suffix filter semantics (spec section
// 4.4: "Suffix-filter semantics mirror §4.3"), applied to the local-to-
// remote deletion pass.
func passesSuffix(name string, f store.SuffixFilter) bool {
	ext := extOf(name)

	switch f.Mode {
	case store.SuffixInclude:
		return inList(f.List, ext)
	case store.SuffixExclude:
		return !inList(f.List, ext)
	default:
		return true
	}
}
