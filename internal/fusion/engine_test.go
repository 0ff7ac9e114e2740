package fusion

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"shopvision/internal/models"
)

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func headphoneSignals() []models.RecognitionSignal {
	return []models.RecognitionSignal{
		models.NewCategorySignal("headphones", 0.8, at),
		models.NewCaptionSignal("a pair of black wireless headphones on a table", 0.6, at),
		models.NewTextSignal([]string{"SonicMax", "X200"}, 0.9, at),
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func queryTexts(qs []models.CanonicalQuery) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Text
	}

	return out
}

func TestFuse_HeadphonesScenario(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil)

	queries, err := e.Fuse(headphoneSignals(), "")
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}

	want := []string{"sonicmax x200", "headphones", "black wireless headphones"}
	if got := queryTexts(queries); !reflect.DeepEqual(got, want) {
		t.Fatalf("queries = %v, want %v", got, want)
	}

	wantConf := []float64{0.45, 0.24, 0.12}
	for i, q := range queries {
		if q.Rank != i {
			t.Errorf("queries[%d].Rank = %d", i, q.Rank)
		}

		if !approx(q.Confidence, wantConf[i]) {
			t.Errorf("queries[%d].Confidence = %v, want %v", i, q.Confidence, wantConf[i])
		}
	}
}

func TestFuse_IsDeterministicAcrossSignalOrder(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil)
	signals := headphoneSignals()

	first, err := e.Fuse(signals, "")
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}

	perms := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {0, 2, 1}}
	for _, perm := range perms {
		shuffled := []models.RecognitionSignal{signals[perm[0]], signals[perm[1]], signals[perm[2]]}

		got, err := e.Fuse(shuffled, "")
		if err != nil {
			t.Fatalf("Fuse failed: %v", err)
		}

		if !reflect.DeepEqual(got, first) {
			t.Errorf("order %v produced %v, want %v", perm, got, first)
		}
	}
}

func TestFuse_GracefulDegradation(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil)

	queries, err := e.Fuse([]models.RecognitionSignal{models.NewCategorySignal("headphones", 0.8, at)}, "")
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}

	if len(queries) != 1 || queries[0].Text != "headphones" || !approx(queries[0].Confidence, 0.24) {
		t.Errorf("queries = %+v", queries)
	}
}

func TestFuse_NoSignalAvailable(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil)

	tests := []struct {
		name    string
		signals []models.RecognitionSignal
	}{
		{"no signals", nil},
		{"nothing usable", []models.RecognitionSignal{
			models.NewTextSignal([]string{"!!", "a"}, 0.9, at),
			models.NewCaptionSignal("a picture of", 0.9, at),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Fuse(tt.signals, "   ")
			if !errors.Is(err, ErrNoSignalAvailable) {
				t.Errorf("Fuse() error = %v, want ErrNoSignalAvailable", err)
			}
		})
	}
}

func TestFuse_LowConfidenceSoleSignal(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil)

	tests := []struct {
		name     string
		signals  []models.RecognitionSignal
		wantText string
		wantConf float64
	}{
		{"text only", []models.RecognitionSignal{
			models.NewTextSignal([]string{"SonicMax", "X200"}, 0.45, at),
		}, "sonicmax x200", 0.5 * 0.45},
		{"category only", []models.RecognitionSignal{
			models.NewCategorySignal("headphones", 0.25, at),
		}, "headphones", 0.3 * 0.25},
		{"strongest weak wins", []models.RecognitionSignal{
			models.NewCategorySignal("headphones", 0.1, at),
			models.NewTextSignal([]string{"SonicMax"}, 0.2, at),
		}, "sonicmax", 0.5 * 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queries, err := e.Fuse(tt.signals, "")
			if err != nil {
				t.Fatalf("Fuse failed: %v", err)
			}

			if len(queries) != 1 || queries[0].Text != tt.wantText || !approx(queries[0].Confidence, tt.wantConf) {
				t.Errorf("queries = %+v, want %q at %.3f", queries, tt.wantText, tt.wantConf)
			}
		})
	}

	// A user query suppresses the fallback.
	queries, err := e.Fuse([]models.RecognitionSignal{models.NewCategorySignal("speakers", 0.25, at)}, "headphones")
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}

	if got := queryTexts(queries); !reflect.DeepEqual(got, []string{"headphones"}) {
		t.Errorf("queries = %v, want only the user query", got)
	}
}

func TestFuse_UserQueryLeads(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil)

	queries, err := e.Fuse(nil, "  Noise Cancelling   HEADPHONES ")
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}

	if len(queries) != 1 || queries[0].Text != "noise cancelling headphones" || queries[0].Confidence != 1 || queries[0].Rank != 0 {
		t.Errorf("queries = %+v", queries)
	}

	queries, err = e.Fuse(headphoneSignals(), "Headphones")
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}

	want := []string{"headphones", "sonicmax x200", "black wireless headphones"}
	if got := queryTexts(queries); !reflect.DeepEqual(got, want) {
		t.Errorf("queries = %v, want %v", got, want)
	}
}

func TestFuse_SharedTextSumsContributions(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil)

	queries, err := e.Fuse([]models.RecognitionSignal{
		models.NewCategorySignal("Headphones", 0.8, at),
		models.NewCaptionSignal("headphones", 0.5, at),
	}, "")
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}

	if len(queries) != 1 {
		t.Fatalf("expected a single merged query, got %v", queries)
	}

	if !approx(queries[0].Confidence, 0.34) {
		t.Errorf("Confidence = %v, want 0.34", queries[0].Confidence)
	}
}

func TestFuse_TiesPreferStrongerKind(t *testing.T) {
	opts := DefaultOptions()
	opts.Weights = Weights{Text: 1, Category: 1, Caption: 1}
	opts.MinTextConfidence = 0

	queries, err := NewEngine(opts, nil).Fuse([]models.RecognitionSignal{
		models.NewCategorySignal("backpack", 0.6, at),
		models.NewTextSignal([]string{"Acme"}, 0.6, at),
	}, "")
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}

	if got := queryTexts(queries); !reflect.DeepEqual(got, []string{"acme", "backpack"}) {
		t.Errorf("queries = %v", got)
	}
}

func TestFuse_TruncatesToMaxQueries(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxQueries = 1

	queries, err := NewEngine(opts, nil).Fuse(headphoneSignals(), "earbuds")
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}

	if len(queries) != 1 || queries[0].Text != "earbuds" {
		t.Errorf("queries = %+v", queries)
	}
}

func TestEngine_TextCandidate(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil)

	tests := []struct {
		tokens []string
		want   string
	}{
		{[]string{"Galaxy", "S23", "SAMSUNG"}, "samsung galaxy s23"},
		{[]string{"WH-1000XM5", "SONY"}, "sony wh 1000xm5"},
		{[]string{"the", "X", "SonicMax", "sonicmax"}, "sonicmax"},
		{[]string{"A1B2C3D4E5F6G7", "boAt"}, "boat"},
	}

	for _, tt := range tests {
		if got := e.textCandidate(tt.tokens); got != tt.want {
			t.Errorf("textCandidate(%v) = %q, want %q", tt.tokens, got, tt.want)
		}
	}
}

func TestEngine_CaptionCandidate(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxCaptionKeywords = 2
	e := NewEngine(opts, nil)

	tests := []struct {
		caption string
		want    string
	}{
		{"a close up of a red wallet", "red wallet"},
		{"arafed shiny red ceramic mug", "shiny mug"},
		{"a photo of a picture of a lamp", "lamp"},
		{"there is a laptop on a desk", "laptop"},
	}

	for _, tt := range tests {
		if got := e.captionCandidate(tt.caption); got != tt.want {
			t.Errorf("captionCandidate(%q) = %q, want %q", tt.caption, got, tt.want)
		}
	}
}

func TestOptionsFromConfig_ExtendsWordLists(t *testing.T) {
	opts := DefaultOptions()
	opts.Brands = []string{"SonicMax"}

	e := NewEngine(opts, nil)

	if got := e.textCandidate([]string{"X200", "SonicMax"}); got != "sonicmax x200" {
		t.Errorf("configured brand should lead, got %q", got)
	}
}
