package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"shopvision/internal/config"
	"shopvision/internal/models"
)

func TestBuildSearchRecord(t *testing.T) {
	result := &models.AggregationResult{
		Listings:         []models.CanonicalListing{{Title: "a"}, {Title: "b"}},
		QueriesUsed:      []models.CanonicalQuery{{Text: "sonicmax x200"}, {Text: "headphones", Rank: 1}},
		SourcesSucceeded: []string{"amazon"},
		SourcesFailed: []models.SourceFailure{
			{Source: "googleshopping", Kind: "timeout"},
			{Source: "flipkart", Kind: "unavailable"},
		},
		DroppedListings: 1,
		TotalLatencyMs:  1234,
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("IST", 19800))
	rec := BuildSearchRecord("image", "", result, at)

	if rec.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt should be UTC, got %v", rec.CreatedAt.Location())
	}

	if strings.Join(rec.Queries, ",") != "sonicmax x200,headphones" {
		t.Errorf("Queries = %v", rec.Queries)
	}

	if strings.Join(rec.Failed, ",") != "flipkart,googleshopping" {
		t.Errorf("Failed = %v", rec.Failed)
	}

	if rec.Listings != 2 || rec.Dropped != 1 || rec.LatencyMs != 1234 {
		t.Errorf("unexpected counters: %+v", rec)
	}
}

func TestBuildListingRows_KeepsNulls(t *testing.T) {
	rating := 4.2
	listings := []models.CanonicalListing{
		{Source: "amazon", Title: "Priced", Link: "https://a/1", Price: &models.Price{Amount: 1999, Currency: "INR"}, Rating: &rating},
		{Source: "flipkart", Title: "Bare", Link: "https://f/1"},
	}

	rows := BuildListingRows(listings)
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}

	if rows[0].Price == nil || *rows[0].Price != 1999 || rows[0].Currency == nil || *rows[0].Currency != "INR" {
		t.Errorf("row 0 price = %v %v", rows[0].Price, rows[0].Currency)
	}

	if rows[1].Position != 1 || rows[1].Price != nil || rows[1].Currency != nil || rows[1].Rating != nil || rows[1].ReviewCount != nil {
		t.Errorf("row 1 should keep nulls: %+v", rows[1])
	}

	listings[0].Price.Amount = 1
	if *rows[0].Price != 1999 {
		t.Error("rows should not alias listing prices")
	}
}

func TestSchemaDDL(t *testing.T) {
	ddl, err := SchemaDDL("shop_history")
	if err != nil {
		t.Fatalf("SchemaDDL failed: %v", err)
	}

	for _, want := range []string{`"shop_history".searches`, `"shop_history".search_listings`, "ON DELETE CASCADE"} {
		if !strings.Contains(ddl, want) {
			t.Errorf("DDL missing %q", want)
		}
	}

	for _, bad := range []string{"", "public; DROP TABLE x", `a"b`, "1abc"} {
		if _, err := SchemaDDL(bad); !errors.Is(err, ErrUnsafeIdentifier) {
			t.Errorf("SchemaDDL(%q) = %v, want ErrUnsafeIdentifier", bad, err)
		}
	}
}

func TestOpen_Disabled(t *testing.T) {
	if _, err := Open(context.Background(), config.StorageConfig{}, nil); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("expected ErrStorageDisabled, got %v", err)
	}
}

func TestOpen_BadDSN(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{DSN: "postgres://%zz", Schema: "public"}, nil)
	if err == nil {
		t.Fatal("expected parse error for malformed DSN")
	}
}

func TestOpen_UnsafeSchema(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{DSN: "postgres://localhost/db", Schema: "x;y"}, nil)
	if !errors.Is(err, ErrUnsafeIdentifier) {
		t.Errorf("expected ErrUnsafeIdentifier, got %v", err)
	}
}
