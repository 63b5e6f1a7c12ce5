package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-shiori/go-readability"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/ports"
)

const maxBodyRunes = 5000

// ReadabilityFetcher downloads announcement pages whose feed body is too
// short and keeps the readable article text.
type ReadabilityFetcher struct {
	client        *http.Client
	minBodyLength int
	logger        *slog.Logger
}

var _ ports.FullTextFetcher = (*ReadabilityFetcher)(nil)

// NewReadabilityFetcher builds a fetcher; bodies with at least minBodyLength
// characters are left untouched.
func NewReadabilityFetcher(client *http.Client, minBodyLength int, logger *slog.Logger) *ReadabilityFetcher {
	return &ReadabilityFetcher{
		client:        defaultClient(client),
		minBodyLength: minBodyLength,
		logger:        logger,
	}
}

// Enrich replaces short bodies in place. Failures keep the feed body.
func (f *ReadabilityFetcher) Enrich(ctx context.Context, items []domain.CandidateItem) []domain.CandidateItem {
	out := make([]domain.CandidateItem, len(items))
	copy(out, items)

	for i := range out {
		if ctx.Err() != nil {
			break
		}
		if len([]rune(out[i].BodyText)) >= f.minBodyLength || out[i].Link == "" {
			continue
		}

		text, err := f.fetchText(ctx, out[i].Link)
		if err != nil {
			if f.logger != nil {
				f.logger.Debug("full text unavailable", "link", out[i].Link, "error", err)
			}
			continue
		}
		if len(text) > len(out[i].BodyText) {
			out[i].BodyText = truncateRunes(text, maxBodyRunes)
		}
	}

	return out
}

func (f *ReadabilityFetcher) fetchText(ctx context.Context, link string) (string, error) {
	pageURL, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}

	body, err := fetchBody(ctx, f.client, link)
	if err != nil {
		return "", err
	}
	defer body.Close()

	article, err := readability.FromReader(body, pageURL)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}

	return collapseSpaces(article.TextContent), nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
