package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"shopvision/internal/config"
	"shopvision/internal/logger"
	"shopvision/internal/models"
	"shopvision/pkg/utils"
)

var errCaptcha = errors.New("robot check page served")

var (
	amazonContainer      = "div[data-component-type='s-search-result']"
	amazonTitleSelectors = []string{
		"span.a-size-medium.a-color-base.a-text-normal",
		"span.a-size-base-plus.a-color-base.a-text-normal",
		"h2.a-size-mini span",
		"h2 span.a-color-base",
		"h2 a span",
		"h2 span",
	}
	amazonPriceSelectors  = []string{"span.a-price-whole", "span.a-offscreen", ".a-price .a-offscreen"}
	amazonLinkSelectors   = []string{"h2 a", "a.a-link-normal.s-no-outline", "a.a-link-normal"}
	amazonRatingSelectors = []string{"span.a-icon-alt"}
	amazonReviewSelectors = []string{"span.a-size-base.s-underline-text", "a[href*='customerReviews'] span", "span.a-size-base"}
)

// Amazon scrapes the amazon.in search results page.
type Amazon struct {
	fetcher  *Fetcher
	helper   *utils.HTTPHelper
	logger   *logger.Logger
	baseURL  string
	currency string
}

// NewAmazon creates the Amazon adapter.
func NewAmazon(src config.SourceConfig, httpCfg config.HTTPConfig, log *logger.Logger) *Amazon {
	return &Amazon{
		fetcher:  NewFetcher(src, httpCfg),
		helper:   utils.NewHTTPHelper(httpCfg.UserAgent),
		logger:   log.With("source", config.SourceAmazon),
		baseURL:  strings.TrimRight(src.BaseURL, "/"),
		currency: "INR",
	}
}

// Name returns the source name.
func (a *Amazon) Name() string { return config.SourceAmazon }

// Search fetches the results page for query.
func (a *Amazon) Search(ctx context.Context, query string, maxResults int) ([]models.RawListing, error) {
	searchURL := a.baseURL + "/s?k=" + url.QueryEscape(query)

	body, err := a.fetcher.Get(ctx, searchURL, nil)
	if err != nil {
		return nil, err
	}

	if isCaptchaPage(body) {
		return nil, NewAdapterError(a.Name(), KindRateLimited, errCaptcha)
	}

	listings, err := a.parse(body, maxResults)
	if err != nil {
		return nil, NewAdapterError(a.Name(), KindParseFailure, err)
	}

	a.logger.Debug("search complete", "query", query, "listings", len(listings))

	return listings, nil
}

func (a *Amazon) parse(body []byte, maxResults int) ([]models.RawListing, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	containers := doc.Find(amazonContainer)
	if containers.Length() == 0 {
		return nil, nil
	}

	listings := make([]models.RawListing, 0, containers.Length())

	containers.EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if listing, ok := a.parseItem(item); ok {
			listings = append(listings, listing)
		}

		return maxResults <= 0 || len(listings) < maxResults
	})

	if len(listings) == 0 {
		return nil, fmt.Errorf("%d result containers but no readable titles", containers.Length())
	}

	return truncateListings(listings, maxResults), nil
}

func (a *Amazon) parseItem(item *goquery.Selection) (models.RawListing, bool) {
	title := firstText(item, amazonTitleSelectors...)
	if title == "" {
		return models.RawListing{}, false
	}

	listing := models.RawListing{
		Source:   a.Name(),
		Title:    title,
		Link:     a.helper.ResolveURL(a.baseURL, firstAttr(item, []string{"href"}, amazonLinkSelectors...)),
		ImageURL: firstAttr(item, []string{"src", "data-src"}, "img.s-image", "img"),
		Price:    ParsePrice(firstText(item, amazonPriceSelectors...), a.currency),
		Rating:   ParseRating(firstText(item, amazonRatingSelectors...)),
	}

	for _, sel := range amazonReviewSelectors {
		if count := ParseCount(item.Find(sel).First().Text()); count != nil {
			listing.ReviewCount = count

			break
		}
	}

	return listing, true
}

func isCaptchaPage(body []byte) bool {
	return bytes.Contains(body, []byte("validateCaptcha")) ||
		bytes.Contains(body, []byte("<title>Robot Check</title>"))
}
