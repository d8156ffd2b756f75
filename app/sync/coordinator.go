package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/brookreader/brook/app/database"
	"github.com/brookreader/brook/app/feed"
)

// ErrFeedFetch wraps network-level failures: timeouts, DNS errors, non-2xx
// responses.
var ErrFeedFetch = errors.New("failed to fetch feed")

// Coordinator runs the fetch, parse, diff, persist pipeline. A single HTTP
// client is shared across all fan-out units; database connections come from
// the store's pool, which is sized to cover full fan-out concurrency.
type Coordinator struct {
	feedRepo    database.FeedRepository
	entryRepo   database.EntryRepository
	parser      *feed.Parser
	extractor   *feed.ContentExtractor
	httpClient  *http.Client
	userAgent   string
	timeout     time.Duration
	parallelism int
}

func NewCoordinator(feedRepo database.FeedRepository, entryRepo database.EntryRepository,
	parser *feed.Parser, extractor *feed.ContentExtractor, httpClient *http.Client,
	userAgent string, timeout time.Duration) *Coordinator {
	return &Coordinator{
		feedRepo:    feedRepo,
		entryRepo:   entryRepo,
		parser:      parser,
		extractor:   extractor,
		httpClient:  httpClient,
		userAgent:   userAgent,
		timeout:     timeout,
		parallelism: runtime.GOMAXPROCS(0),
	}
}

// RefreshFeed fetches the feed's source URL and persists the entries not yet
// stored, returning how many were inserted. The entry link is the dedup key;
// entries without a link have no reliable identity and are always inserted.
// The refresh timestamp is recorded whether or not anything new was found.
func (c *Coordinator) RefreshFeed(ctx context.Context, feedID int64) (int, error) {
	f, err := c.feedRepo.GetFeed(feedID)
	if err != nil {
		return 0, err
	}

	source, err := c.fetchAndParse(ctx, f.SourceURL)
	if err != nil {
		return 0, err
	}

	existing, err := c.entryRepo.ListEntryLinks(feedID, database.ReadModeAll)
	if err != nil {
		return 0, err
	}

	fresh := make([]database.Entry, 0, len(source.Entries))
	for _, entry := range source.Entries {
		if entry.Link == nil {
			fresh = append(fresh, entry)
			continue
		}
		if _, seen := existing[*entry.Link]; !seen {
			fresh = append(fresh, entry)
		}
	}

	inserted, err := c.entryRepo.BulkInsertEntries(feedID, fresh)
	if err != nil {
		return 0, err
	}

	if err := c.feedRepo.TouchRefreshedAt(feedID, time.Now().UTC()); err != nil {
		return inserted, err
	}

	slog.Debug("Feed refreshed", "feed_id", feedID, "url", f.SourceURL,
		"remote", len(source.Entries), "new", inserted)

	return inserted, nil
}

// RefreshFeeds refreshes a batch concurrently. Feed ids are split into chunks
// sized so there are at least twice as many chunks as available parallelism;
// chunks run concurrently, feeds within a chunk sequentially. One feed's
// failure never aborts its siblings, and the result accounts for every feed
// attempted.
func (c *Coordinator) RefreshFeeds(ctx context.Context, feedIDs []int64) BatchRefreshed {
	started := time.Now()
	result := BatchRefreshed{Attempted: len(feedIDs)}
	if len(feedIDs) == 0 {
		return result
	}

	chunkSize := len(feedIDs) / (2 * c.parallelism)
	if chunkSize < 1 {
		chunkSize = 1
	}

	type feedResult struct {
		feedID int64
		err    error
	}

	results := make(chan feedResult, len(feedIDs))

	var g errgroup.Group
	for _, chunk := range lo.Chunk(feedIDs, chunkSize) {
		g.Go(func() error {
			for _, feedID := range chunk {
				_, err := c.RefreshFeed(ctx, feedID)
				results <- feedResult{feedID: feedID, err: err}
			}
			return nil
		})
	}

	g.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			result.Failures = append(result.Failures, FeedFailure{FeedID: r.feedID, Err: r.err})
		} else {
			result.Succeeded++
		}
	}

	result.Duration = time.Since(started)
	return result
}

// Subscribe fetches and parses the document at url, creates the feed, and
// inserts every parsed entry. The feed is new, so no dedup pass is needed. If
// entry insertion fails after the feed row was created, the feed is left
// behind empty; the next refresh populates it.
func (c *Coordinator) Subscribe(ctx context.Context, url string) (int64, error) {
	source, err := c.fetchAndParse(ctx, url)
	if err != nil {
		return 0, err
	}

	feedID, err := c.feedRepo.CreateFeed(source.Feed)
	if err != nil {
		return 0, err
	}

	if _, err := c.entryRepo.BulkInsertEntries(feedID, source.Entries); err != nil {
		return 0, err
	}

	slog.Debug("Subscribed to feed", "feed_id", feedID, "url", url,
		"entries", len(source.Entries))

	return feedID, nil
}

// ExtractContent fetches the entry's page and replaces the stored content
// with the readability-extracted article body.
func (c *Coordinator) ExtractContent(ctx context.Context, entryID int64) error {
	entry, err := c.entryRepo.GetEntry(entryID)
	if err != nil {
		return err
	}
	if entry.Link == nil {
		return fmt.Errorf("entry %d has no link to extract content from", entryID)
	}

	data, err := c.fetch(ctx, *entry.Link)
	if err != nil {
		return err
	}

	pageURL, err := url.Parse(*entry.Link)
	if err != nil {
		return fmt.Errorf("failed to parse entry link: %w", err)
	}

	content, err := c.extractor.Run(data, pageURL)
	if err != nil {
		return err
	}

	return c.entryRepo.UpdateEntryContent(entryID, content)
}

func (c *Coordinator) fetchAndParse(ctx context.Context, url string) (*feed.Source, error) {
	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return c.parser.Run(data, url)
}

// fetch issues a GET with the configured timeout, retrying transient failures
// with exponential backoff. Client errors (4xx) are not retried.
func (c *Coordinator) fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte

	operation := func() error {
		timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		data, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFeedFetch, url, err)
	}

	return data, nil
}
