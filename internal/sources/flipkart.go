package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"shopvision/internal/config"
	"shopvision/internal/logger"
	"shopvision/internal/models"
	"shopvision/pkg/utils"
)

var (
	flipkartContainers      = "div._1AtVbE, div._13oc-S, div[data-id]"
	flipkartTitleSelectors  = []string{"div._4rR01T", "a.s1Q9rs", "div.KzDlHZ", "a.wjcEIp", "a.WKTcLC"}
	flipkartPriceSelectors  = []string{"div._30jeq3", "div._25b18c", "div.Nx9bqj"}
	flipkartImageSelectors  = []string{"img._396cs4", "img.DByuf4", "img"}
	flipkartLinkSelectors   = []string{"a._1fQZEK", "a.s1Q9rs", "a.CGtC98", "a.wjcEIp", "a[href*='/p/']"}
	flipkartRatingSelectors = []string{"div._3LWZlK", "div.XQDdHH"}
	flipkartReviewSelectors = []string{"span._2_R_DZ", "span.Wphh3N"}
)

// Flipkart scrapes the flipkart.com search results page.
type Flipkart struct {
	fetcher  *Fetcher
	helper   *utils.HTTPHelper
	logger   *logger.Logger
	baseURL  string
	currency string
}

// NewFlipkart creates the Flipkart adapter.
func NewFlipkart(src config.SourceConfig, httpCfg config.HTTPConfig, log *logger.Logger) *Flipkart {
	return &Flipkart{
		fetcher:  NewFetcher(src, httpCfg),
		helper:   utils.NewHTTPHelper(httpCfg.UserAgent),
		logger:   log.With("source", config.SourceFlipkart),
		baseURL:  strings.TrimRight(src.BaseURL, "/"),
		currency: "INR",
	}
}

// Name returns the source name.
func (f *Flipkart) Name() string { return config.SourceFlipkart }

// Search fetches the results page for query.
func (f *Flipkart) Search(ctx context.Context, query string, maxResults int) ([]models.RawListing, error) {
	searchURL := f.baseURL + "/search?q=" + url.QueryEscape(query)

	body, err := f.fetcher.Get(ctx, searchURL, nil)
	if err != nil {
		return nil, err
	}

	listings, err := f.parse(body, maxResults)
	if err != nil {
		return nil, NewAdapterError(f.Name(), KindParseFailure, err)
	}

	f.logger.Debug("search complete", "query", query, "listings", len(listings))

	return listings, nil
}

func (f *Flipkart) parse(body []byte, maxResults int) ([]models.RawListing, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	containers := doc.Find(flipkartContainers)
	if containers.Length() == 0 {
		return nil, nil
	}

	// Container classes nest, so the same product can surface more than once.
	seen := make(map[string]bool)
	listings := make([]models.RawListing, 0, containers.Length())

	containers.EachWithBreak(func(_ int, item *goquery.Selection) bool {
		listing, ok := f.parseItem(item)
		if !ok {
			return true
		}

		key := listing.Link
		if key == "" {
			key = listing.Title
		}

		if seen[key] {
			return true
		}

		seen[key] = true
		listings = append(listings, listing)

		return maxResults <= 0 || len(listings) < maxResults
	})

	if len(listings) == 0 && doc.Find("div._4rR01T, a.s1Q9rs, div.KzDlHZ, div._30jeq3, div.Nx9bqj").Length() > 0 {
		return nil, fmt.Errorf("%d result containers but no readable titles", containers.Length())
	}

	return truncateListings(listings, maxResults), nil
}

func (f *Flipkart) parseItem(item *goquery.Selection) (models.RawListing, bool) {
	title := firstText(item, flipkartTitleSelectors...)
	if title == "" {
		title = firstAttr(item, []string{"title"}, flipkartTitleSelectors...)
	}

	if title == "" {
		return models.RawListing{}, false
	}

	listing := models.RawListing{
		Source:   f.Name(),
		Title:    title,
		Link:     f.helper.ResolveURL(f.baseURL, firstAttr(item, []string{"href"}, flipkartLinkSelectors...)),
		ImageURL: firstAttr(item, []string{"src", "data-src"}, flipkartImageSelectors...),
		Price:    ParsePrice(firstText(item, flipkartPriceSelectors...), f.currency),
		Rating:   ParseRating(firstText(item, flipkartRatingSelectors...)),
	}

	listing.ReviewCount = parseFlipkartReviews(firstText(item, flipkartReviewSelectors...))

	return listing, true
}

// parseFlipkartReviews reads the review figure from text like
// "12,345 Ratings & 1,234 Reviews", falling back to the first count.
func parseFlipkartReviews(text string) *int {
	if text == "" {
		return nil
	}

	if _, after, ok := strings.Cut(text, "&"); ok {
		if n := ParseCount(after); n != nil {
			return n
		}
	}

	return ParseCount(text)
}
