package ranker

import (
	"encoding/json"
	"reflect"
	"testing"

	"shopvision/internal/models"
)

func TestAnalyzePrices(t *testing.T) {
	a := listing("amazon", "a", "https://a.example/1")
	a.Price = inr(2499)
	f := listing("flipkart", "f", "https://f.example/1")
	f.Price = inr(2349)
	g := listing("googleshopping", "g", "https://g.example/1")
	g.Price = &models.Price{Amount: 17.49, Currency: "USD"}
	none := listing("amazon", "n", "https://a.example/2")

	got := AnalyzePrices([]models.CanonicalListing{a, none, g, f})
	if got == nil {
		t.Fatal("AnalyzePrices returned nil")
	}

	if got.Currency != "INR" || got.Count != 2 {
		t.Errorf("Currency = %s Count = %d", got.Currency, got.Count)
	}

	if got.Best.Source != "flipkart" || got.Min != 2349 || got.Max != 2499 {
		t.Errorf("Best = %s Min = %v Max = %v", got.Best.Source, got.Min, got.Max)
	}

	if got.Savings != 150 || got.Average != 2424 {
		t.Errorf("Savings = %v Average = %v", got.Savings, got.Average)
	}
}

func TestAnalyzePrices_SingleAndNone(t *testing.T) {
	if AnalyzePrices([]models.CanonicalListing{listing("amazon", "n", "https://a.example/2")}) != nil {
		t.Error("expected nil without prices")
	}

	one := listing("amazon", "a", "https://a.example/1")
	one.Price = inr(100)

	got := AnalyzePrices([]models.CanonicalListing{one})
	if got == nil || got.Savings != 0 || got.Best.Title != "a" {
		t.Errorf("AnalyzePrices() = %+v", got)
	}
}

func TestFilterBySpecs(t *testing.T) {
	input := []models.CanonicalListing{
		listing("amazon", "Apple iPhone 15 (128 GB) - Black", "https://a.example/1"),
		listing("flipkart", "Apple iPhone 15 (256 GB) - Black", "https://f.example/1"),
		listing("amazon", "Apple iPhone 15 (128GB) - Blue", "https://a.example/2"),
	}

	got := FilterBySpecs(input, "128GB", "black")
	if !reflect.DeepEqual(titles(got), []string{"Apple iPhone 15 (128 GB) - Black"}) {
		t.Errorf("FilterBySpecs() = %v", titles(got))
	}

	if all := FilterBySpecs(input, " ", ""); len(all) != 3 {
		t.Errorf("blank specs should keep everything, got %d", len(all))
	}
}

func TestFilterBySpecs_NoMatchIsEmptyNotNil(t *testing.T) {
	input := []models.CanonicalListing{
		listing("amazon", "Apple iPhone 15 (128 GB) - Black", "https://a.example/1"),
	}

	for _, got := range [][]models.CanonicalListing{
		FilterBySpecs(input, "512gb"),
		FilterBySpecs(nil, "black"),
		FilterBySpecs(nil),
	} {
		if got == nil || len(got) != 0 {
			t.Fatalf("FilterBySpecs() = %#v, want empty non-nil slice", got)
		}

		data, err := json.Marshal(got)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}

		if string(data) != "[]" {
			t.Errorf("encoded as %s, want []", data)
		}
	}
}
