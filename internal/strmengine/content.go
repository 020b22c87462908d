package strmengine

import (
	"net/url"
	"strings"

	"github.com/cloudgather/cloudgather/internal/openlist"
	"github.com/cloudgather/cloudgather/internal/store"
)

// strmContent builds the single-line pointer content for one remote
// entry (spec section 4.4, 6: "UTF-8 plain text, single line, no trailing
// newline, no BOM").
func strmContent(mode store.StrmMode, remotePath string, entry openlist.Entry, baseURL, publicURL string) string {
	switch mode {
	case store.ModeAlistPath:
		return remotePath
	case store.ModeRawURL:
		if entry.Raw != "" {
			return entry.Raw
		}

		return alistURL(remotePath, entry.Sign, baseURL, publicURL)
	default: // store.ModeAlistURL
		return alistURL(remotePath, entry.Sign, baseURL, publicURL)
	}
}

// alistURL builds "<publicBase|base>/d/<encodedPath>?sign=<sign>" (spec
// section 4.4: "AlistURL: <publicBase | base>/d/<encodedPath>?sign=<sign>
// (sign taken from the list response; omitted if empty)").
func alistURL(remotePath, sign, baseURL, publicURL string) string {
	base := baseURL
	if publicURL != "" {
		base = publicURL
	}

	encoded := encodePath(remotePath)

	u := strings.TrimRight(base, "/") + "/d" + encoded
	if sign != "" {
		u += "?sign=" + url.QueryEscape(sign)
	}

	return u
}

// encodePath percent-encodes each path segment while preserving the
// leading slash separators.
func encodePath(remotePath string) string {
	segments := strings.Split(remotePath, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}
