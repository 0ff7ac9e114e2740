package formatter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"shopvision/internal/models"
	"shopvision/internal/ranker"
)

var listingHeaders = []string{"#", "Title", "Price", "Rating", "Reviews", "Source"}

// RenderResult renders a ranked result, its queries, per-source outcome and,
// when given, the price analysis. Every table in the report goes through
// FormatTables before it is returned.
func RenderResult(result *models.AggregationResult, analysis *ranker.PriceAnalysis) string {
	var sb strings.Builder

	sb.WriteString("# Results\n\n")

	if len(result.QueriesUsed) > 0 {
		sb.WriteString("Queries:")

		for _, q := range result.QueriesUsed {
			fmt.Fprintf(&sb, " %q (%.2f)", q.Text, q.Confidence)
		}

		sb.WriteString("\n\n")
	}

	if result.Empty() {
		sb.WriteString("No listings found.\n")
	} else {
		sb.WriteString(strings.Join(RenderListings(result.Listings), "\n"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Sources\n\n")
	sb.WriteString(strings.Join(renderSources(result), "\n"))
	sb.WriteString("\n")

	if result.DroppedListings > 0 {
		fmt.Fprintf(&sb, "\n%d malformed listing(s) dropped.\n", result.DroppedListings)
	}

	if analysis != nil {
		sb.WriteString("\n")
		sb.WriteString(RenderPriceAnalysis(analysis))
	}

	fmt.Fprintf(&sb, "\nTotal latency: %d ms\n", result.TotalLatencyMs)

	return FormatTables(sb.String())
}

// RenderListings renders ranked listings as a table.
func RenderListings(listings []models.CanonicalListing) []string {
	rows := make([][]string, 0, len(listings))

	for i, l := range listings {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			l.Title,
			formatPrice(l.Price),
			formatRating(l.Rating),
			formatCount(l.ReviewCount),
			l.Source,
		})
	}

	return RenderTable(listingHeaders, rows)
}

// RenderRawListings renders listings exactly as an adapter returned them.
func RenderRawListings(listings []models.RawListing) []string {
	rows := make([][]string, 0, len(listings))

	for i, l := range listings {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			l.Title,
			formatPrice(l.Price),
			formatRating(l.Rating),
			formatCount(l.ReviewCount),
			l.Link,
		})
	}

	return RenderTable([]string{"#", "Title", "Price", "Rating", "Reviews", "Link"}, rows)
}

func renderSources(result *models.AggregationResult) []string {
	var rows [][]string

	for _, name := range result.SourcesSucceeded {
		rows = append(rows, []string{name, "ok", ""})
	}

	for _, f := range result.SourcesFailed {
		rows = append(rows, []string{f.Source, f.Kind, f.Message})
	}

	return RenderTable([]string{"Source", "Status", "Detail"}, rows)
}

// RenderPriceAnalysis renders the price summary.
func RenderPriceAnalysis(a *ranker.PriceAnalysis) string {
	var sb strings.Builder

	sb.WriteString("## Prices\n\n")

	if a.Count == 0 {
		sb.WriteString("No priced listings.\n")

		return sb.String()
	}

	rows := [][]string{
		{"Best", fmt.Sprintf("%s %.2f (%s)", a.Currency, a.Min, a.Best.Source)},
		{"Highest", fmt.Sprintf("%s %.2f", a.Currency, a.Max)},
		{"Average", fmt.Sprintf("%s %.2f", a.Currency, a.Average)},
	}

	if a.Savings > 0 {
		rows = append(rows, []string{"Savings", fmt.Sprintf("%s %.2f", a.Currency, a.Savings)})
	}

	rows = append(rows, []string{"Compared", strconv.Itoa(a.Count)})

	sb.WriteString(strings.Join(RenderTable([]string{"Metric", "Value"}, rows), "\n"))
	sb.WriteString("\n")

	return sb.String()
}

// JSON renders v as indented JSON.
func JSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}

	return string(data), nil
}

func formatPrice(p *models.Price) string {
	if p == nil {
		return "-"
	}

	return p.String()
}

func formatRating(r *float64) string {
	if r == nil {
		return "-"
	}

	return strconv.FormatFloat(*r, 'f', 1, 64)
}

func formatCount(n *int) string {
	if n == nil {
		return "-"
	}

	return strconv.Itoa(*n)
}
