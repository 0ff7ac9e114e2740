package ranker

import (
	"sort"
	"strings"

	"shopvision/internal/models"
	"shopvision/pkg/utils"
)

// PriceAnalysis summarizes the priced listings of one currency.
type PriceAnalysis struct {
	Best     models.CanonicalListing `json:"best"`
	Currency string                  `json:"currency"`
	Min      float64                 `json:"min"`
	Max      float64                 `json:"max"`
	Average  float64                 `json:"average"`
	Savings  float64                 `json:"savings"`
	Count    int                     `json:"count"`
}

// AnalyzePrices reports the best price among listings. Only the currency with
// the most priced listings is considered, so amounts are never mixed. Savings
// is the spread between the dearest and cheapest offer and stays zero for a
// single offer. It returns nil when no listing has a price.
func AnalyzePrices(listings []models.CanonicalListing) *PriceAnalysis {
	byCurrency := make(map[string][]models.CanonicalListing)

	for _, l := range listings {
		if l.HasPrice() {
			byCurrency[l.Price.Currency] = append(byCurrency[l.Price.Currency], l)
		}
	}

	if len(byCurrency) == 0 {
		return nil
	}

	currencies := make([]string, 0, len(byCurrency))
	for c := range byCurrency {
		currencies = append(currencies, c)
	}

	sort.Slice(currencies, func(i, j int) bool {
		ni, nj := len(byCurrency[currencies[i]]), len(byCurrency[currencies[j]])
		if ni != nj {
			return ni > nj
		}

		return currencies[i] < currencies[j]
	})

	priced := byCurrency[currencies[0]]

	analysis := &PriceAnalysis{
		Best:     priced[0],
		Currency: currencies[0],
		Min:      priced[0].Price.Amount,
		Max:      priced[0].Price.Amount,
		Count:    len(priced),
	}

	sum := 0.0

	for _, l := range priced {
		amount := l.Price.Amount
		sum += amount

		if amount < analysis.Min {
			analysis.Min = amount
			analysis.Best = l
		}

		if amount > analysis.Max {
			analysis.Max = amount
		}
	}

	analysis.Average = sum / float64(len(priced))
	if analysis.Count > 1 {
		analysis.Savings = analysis.Max - analysis.Min
	}

	return analysis
}

// FilterBySpecs keeps listings whose title mentions every spec, such as a
// storage size or a color. Spacing and punctuation are ignored, so "128GB"
// matches "128 GB".
func FilterBySpecs(listings []models.CanonicalListing, specs ...string) []models.CanonicalListing {
	helper := utils.NewStringHelper()

	var wanted []string

	for _, s := range specs {
		if c := compact(helper.Fold(s)); c != "" {
			wanted = append(wanted, c)
		}
	}

	if len(wanted) == 0 {
		return append([]models.CanonicalListing{}, listings...)
	}

	kept := []models.CanonicalListing{}

	for _, l := range listings {
		title := compact(helper.Fold(l.Title))

		match := true

		for _, w := range wanted {
			if !strings.Contains(title, w) {
				match = false

				break
			}
		}

		if match {
			kept = append(kept, l)
		}
	}

	return kept
}

func compact(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
