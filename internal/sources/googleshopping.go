package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"shopvision/internal/config"
	"shopvision/internal/logger"
	"shopvision/internal/models"
	"shopvision/pkg/utils"
)

// googleNamespace is the prefix of the Merchant product feed attributes.
const googleNamespace = "g"

// GoogleShopping reads an RSS 2.0 product feed whose items carry
// g:price, g:image_link and review attributes.
type GoogleShopping struct {
	fetcher  *Fetcher
	helper   *utils.HTTPHelper
	logger   *logger.Logger
	baseURL  string
	currency string
}

// NewGoogleShopping creates the Google Shopping feed adapter.
func NewGoogleShopping(src config.SourceConfig, httpCfg config.HTTPConfig, log *logger.Logger) *GoogleShopping {
	return &GoogleShopping{
		fetcher:  NewFetcher(src, httpCfg),
		helper:   utils.NewHTTPHelper(httpCfg.UserAgent),
		logger:   log.With("source", config.SourceGoogleShopping),
		baseURL:  strings.TrimRight(src.BaseURL, "/"),
		currency: "INR",
	}
}

// Name returns the source name.
func (g *GoogleShopping) Name() string { return config.SourceGoogleShopping }

// Search fetches the product feed for query.
func (g *GoogleShopping) Search(ctx context.Context, query string, maxResults int) ([]models.RawListing, error) {
	feedURL := fmt.Sprintf("%s/search?output=rss&num=%d&q=%s", g.baseURL, maxResults, url.QueryEscape(query))

	body, err := g.fetcher.Get(ctx, feedURL, map[string]string{
		"Accept": "application/rss+xml, application/xml;q=0.9",
	})
	if err != nil {
		return nil, err
	}

	listings, err := g.parse(string(body), maxResults)
	if err != nil {
		return nil, NewAdapterError(g.Name(), KindParseFailure, err)
	}

	g.logger.Debug("search complete", "query", query, "listings", len(listings))

	return listings, nil
}

func (g *GoogleShopping) parse(body string, maxResults int) ([]models.RawListing, error) {
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	listings := make([]models.RawListing, 0, len(feed.Items))

	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = extValue(item.Extensions, "title")
		}

		if title == "" {
			continue
		}

		link := strings.TrimSpace(item.Link)
		if link == "" {
			link = extValue(item.Extensions, "link")
		}

		listing := models.RawListing{
			Source:   g.Name(),
			Title:    title,
			Link:     g.helper.ResolveURL(g.baseURL, link),
			ImageURL: extValue(item.Extensions, "image_link"),
			Price:    ParsePrice(firstNonEmpty(extValue(item.Extensions, "sale_price"), extValue(item.Extensions, "price")), g.currency),
			Rating:   ParseRating(extValue(item.Extensions, "product_review_average")),
		}

		if listing.ImageURL == "" && item.Image != nil {
			listing.ImageURL = item.Image.URL
		}

		listing.ReviewCount = ParseCount(extValue(item.Extensions, "product_review_count"))

		listings = append(listings, listing)
		if maxResults > 0 && len(listings) == maxResults {
			break
		}
	}

	return listings, nil
}

func extValue(exts ext.Extensions, name string) string {
	if exts == nil {
		return ""
	}

	values := exts[googleNamespace][name]
	if len(values) == 0 {
		return ""
	}

	return strings.TrimSpace(values[0].Value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
