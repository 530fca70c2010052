package tle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultSourceURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=active&FORMAT=tle"
	maxBodyBytes     = 50 << 20
)

// ErrRefreshInProgress is returned when a catalog refresh is already running.
var ErrRefreshInProgress = errors.New("catalog refresh already in progress")

// Fetcher downloads catalogs from a primary source and any number of
// supplementary sources and merges them.
type Fetcher struct {
	sourceURL  string
	extraURLs  []string
	httpClient *http.Client
	maxBytes   int64 // per source
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher. An empty sourceURL selects the CelesTrak
// active catalog. Extra sources are best effort: their failures are logged.
func NewFetcher(sourceURL string, logger *slog.Logger, extraURLs ...string) *Fetcher {
	if sourceURL == "" {
		sourceURL = defaultSourceURL
	}
	return &Fetcher{
		sourceURL:  sourceURL,
		extraURLs:  extraURLs,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxBytes:   maxBodyBytes,
		logger:     logger,
	}
}

// SourceURL returns the primary source URL.
func (f *Fetcher) SourceURL() string { return f.sourceURL }

// Fetch downloads and parses every source. A catalog number present in
// several sources keeps the element set with the latest epoch; output order
// follows first appearance.
func (f *Fetcher) Fetch(ctx context.Context) ([]ElementSet, error) {
	sets, err := f.fetchOne(ctx, f.sourceURL)
	if err != nil {
		return nil, err
	}

	index := make(map[int]int, len(sets))
	merged := make([]ElementSet, 0, len(sets))
	add := func(batch []ElementSet) {
		for _, es := range batch {
			if i, ok := index[es.CatalogNumber]; ok {
				if es.Epoch.After(merged[i].Epoch) {
					merged[i] = es
				}
				continue
			}
			index[es.CatalogNumber] = len(merged)
			merged = append(merged, es)
		}
	}
	add(sets)

	for _, u := range f.extraURLs {
		extra, err := f.fetchOne(ctx, u)
		if err != nil {
			f.logger.Warn("extra TLE source failed", "url", u, "error", err)
			continue
		}
		add(extra)
	}
	return merged, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) ([]ElementSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body := &cappedReader{r: resp.Body, limit: f.maxBytes, remaining: f.maxBytes, url: url}
	return ParseCatalog(body, f.logger.With("url", url))
}

// cappedReader fails once more than remaining bytes have been read.
type cappedReader struct {
	r         io.Reader
	limit     int64
	remaining int64
	url       string
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining <= 0 {
		var extra [1]byte
		if n, err := c.r.Read(extra[:]); n == 0 {
			return 0, err
		}
		return 0, fmt.Errorf("response from %s exceeds %d byte limit", c.url, c.limit)
	}
	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	return n, err
}
