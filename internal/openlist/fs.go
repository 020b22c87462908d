package openlist

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// List requests one page of a directory listing (spec section 4.5:
// "list(path, page, perPage) → (entries, total)"). Callers iterate pages
// until the returned page is shorter than perPage.
func (c *Client) List(ctx context.Context, path string, page, perPage int) (ListPage, error) {
	req := listRequest{Path: path, Page: page, PerPage: perPage}

	var resp listResponse
	if err := c.doJSON(ctx, "list", "/api/fs/list", req, &resp, false); err != nil {
		return ListPage{}, err
	}

	return resp.Data, nil
}

// Get fetches metadata for a single path.
func (c *Client) Get(ctx context.Context, path string) (Entry, error) {
	req := getRequest{Path: path}

	var resp getResponse
	if err := c.doJSON(ctx, "get", "/api/fs/get", req, &resp, false); err != nil {
		return Entry{}, err
	}

	return resp.Data, nil
}

// Download streams the file at entry's raw URL into sink. If entry.Raw is
// empty, Download returns an error; it does not look up the entry's
// metadata to obtain a URL. Spec section 4.5:
// "download(path, sink)"; "URL signature for downloads uses the sign
// field from list responses" — entries already carry Raw+Sign from
// List/Get, so Download never reconstructs the URL itself.
func (c *Client) Download(ctx context.Context, entry Entry, sink io.Writer) error {
	rawURL := entry.Raw
	if rawURL == "" {
		return fmt.Errorf("openlist: download: entry %q carries no raw_url", entry.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("openlist: download: building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openlist: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &apiError{op: "download", path: entry.Name, code: resp.StatusCode, message: "non-200 on raw download"}
	}

	if _, err := io.Copy(sink, resp.Body); err != nil {
		return fmt.Errorf("openlist: download: copying body: %w", err)
	}

	return nil
}

// Delete requests remote removal of the named entries under dir (spec
// section 4.5: "delete(path)"). Writes are attempted at most twice and
// must surface any failure — handled by doJSON's writeOp flag.
func (c *Client) Delete(ctx context.Context, dir string, names ...string) error {
	req := removeRequest{Dir: dir, Names: names}

	return c.doJSON(ctx, "remove", "/api/fs/remove", req, nil, true)
}
