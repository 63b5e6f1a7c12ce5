package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/scanner"
)

// Default CSS selectors for listing pages; each can be overridden per source.
const (
	defaultItemSelector    = "article"
	defaultTitleSelector   = "a"
	defaultLinkSelector    = "a[href]"
	defaultSummarySelector = "p"
)

// HTMLScanner scrapes announcement listing pages that publish no feed.
type HTMLScanner struct {
	client *http.Client
	logger *slog.Logger
}

var _ scanner.Scanner = (*HTMLScanner)(nil)

// NewHTMLScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewHTMLScanner(client *http.Client, logger *slog.Logger) *HTMLScanner {
	return &HTMLScanner{client: defaultClient(client), logger: logger}
}

// Name identifies the strategy inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

// Scan fetches the listing page and extracts one candidate per item node.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateItem, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("no url provided for source %s", req.SourceName)
	}

	base, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %s: %w", req.URL, err)
	}

	body, err := fetchBody(ctx, h.client, req.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return extractListing(doc, base, req), nil
}

func extractListing(doc *goquery.Document, base *url.URL, req scanner.Request) []domain.CandidateItem {
	itemSel := req.Option("item", defaultItemSelector)
	titleSel := req.Option("title", defaultTitleSelector)
	linkSel := req.Option("link", defaultLinkSelector)
	summarySel := req.Option("summary", defaultSummarySelector)

	var items []domain.CandidateItem
	doc.Find(itemSel).Each(func(_ int, node *goquery.Selection) {
		item, ok := parseListingEntry(node, base, titleSel, linkSel, summarySel, req.SourceName)
		if ok {
			items = append(items, item)
		}
	})
	return items
}

func parseListingEntry(node *goquery.Selection, base *url.URL, titleSel, linkSel, summarySel, sourceName string) (domain.CandidateItem, bool) {
	href, exists := node.Find(linkSel).First().Attr("href")
	if !exists {
		if h, ok := node.Attr("href"); ok {
			href = h
		}
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return domain.CandidateItem{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return domain.CandidateItem{}, false
	}
	link := base.ResolveReference(ref).String()

	identity := domain.CanonicalIdentity(link, "")
	if identity == "" {
		return domain.CandidateItem{}, false
	}

	title := collapseSpaces(node.Find(titleSel).First().Text())
	if title == "" {
		title = collapseSpaces(node.Text())
	}

	summary := ""
	if summarySel != "" {
		summary = collapseSpaces(node.Find(summarySel).First().Text())
	}

	return domain.CandidateItem{
		Identity:   identity,
		Title:      title,
		BodyText:   summary,
		SourceName: sourceName,
		Link:       link,
	}, true
}
