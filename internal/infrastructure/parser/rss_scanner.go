package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/scanner"
)

// RSSScanner reads RSS/Atom feeds such as garant.ru hotlaw or consultant.ru hotdocs.
type RSSScanner struct {
	client *http.Client
	logger *slog.Logger
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewRSSScanner(client *http.Client, logger *slog.Logger) *RSSScanner {
	return &RSSScanner{client: defaultClient(client), logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *RSSScanner) Name() string {
	return "rss"
}

// Scan downloads the feed and converts every entry with a stable identity.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateItem, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("no url provided for source %s", req.SourceName)
	}

	body, err := fetchBody(ctx, s.client, req.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", req.URL, err)
	}

	items := make([]domain.CandidateItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item, ok := convertEntry(entry, req.SourceName)
		if !ok {
			s.debug("skip entry without identity", "source", req.SourceName, "title", entry.Title)
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func convertEntry(entry *gofeed.Item, sourceName string) (domain.CandidateItem, bool) {
	if entry == nil {
		return domain.CandidateItem{}, false
	}

	identity := domain.CanonicalIdentity(entry.Link, entry.GUID)
	if identity == "" {
		return domain.CandidateItem{}, false
	}

	body := entry.Content
	if strings.TrimSpace(body) == "" {
		body = entry.Description
	}

	publishedAt := time.Time{}
	switch {
	case entry.PublishedParsed != nil:
		publishedAt = entry.PublishedParsed.UTC()
	case entry.UpdatedParsed != nil:
		publishedAt = entry.UpdatedParsed.UTC()
	}

	link := strings.TrimSpace(entry.Link)
	if link == "" {
		link = identity
	}

	return domain.CandidateItem{
		Identity:    identity,
		Title:       collapseSpaces(entry.Title),
		BodyText:    plainText(body),
		SourceName:  sourceName,
		Link:        link,
		PublishedAt: publishedAt,
	}, true
}

func (s *RSSScanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
