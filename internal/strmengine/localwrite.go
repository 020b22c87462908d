package strmengine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cloudgather/cloudgather/internal/openlist"
)

const tempSuffix = ".cgpart"

// writeStrmFile writes content to path atomically (write-then-rename),
// skipping the write entirely if an identical file already exists (spec
// section 4.4: "File existence with identical content is a skip").
func writeStrmFile(path, content string) (wrote bool, err error) {
	if existing, readErr := os.ReadFile(path); readErr == nil && string(existing) == content {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("strmengine: creating directory for %s: %w", path, err)
	}

	if err := atomicWrite(path, []byte(content)); err != nil {
		return false, err
	}

	return true, nil
}

// downloadExtraFile fetches entry's content through the OpenList client
// and writes it atomically, skipping identical existing content.
func downloadExtraFile(ctx context.Context, client downloader, entry openlist.Entry, destPath string) (wrote bool, err error) {
	var buf bytes.Buffer
	if err := client.Download(ctx, entry, &buf); err != nil {
		return false, fmt.Errorf("strmengine: downloading %s: %w", entry.Name, err)
	}

	if existing, readErr := os.ReadFile(destPath); readErr == nil && bytes.Equal(existing, buf.Bytes()) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return false, fmt.Errorf("strmengine: creating directory for %s: %w", destPath, err)
	}

	if err := atomicWrite(destPath, buf.Bytes()); err != nil {
		return false, err
	}

	return true, nil
}

// downloader is the subset of *openlist.Client this package needs for
// extra-file downloads, kept narrow per "accept interfaces, return
// structs".
type downloader interface {
	Download(ctx context.Context, entry openlist.Entry, sink io.Writer) error
}

func atomicWrite(path string, data []byte) error {
	tempPath := path + tempSuffix

	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("strmengine: writing temp file %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("strmengine: renaming %s into place: %w", tempPath, err)
	}

	return nil
}
