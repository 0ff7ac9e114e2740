// Package fusion turns recognition signals into a short ranked list of search queries.
package fusion

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"shopvision/internal/config"
	"shopvision/internal/logger"
	"shopvision/internal/models"
	"shopvision/pkg/utils"
)

// ErrNoSignalAvailable is returned when neither the signals nor the user
// supplied anything a query can be built from.
var ErrNoSignalAvailable = errors.New("no usable recognition signal or user query")

// modelToken matches product model numbers such as "x200" or "wh1000".
var modelToken = regexp.MustCompile(`^[a-z0-9]{2,10}$`)

var textHelper = utils.NewStringHelper()

func fold(s string) string {
	return textHelper.Fold(s)
}

// Weights hold the trust placed in each signal kind.
type Weights struct {
	Text     float64
	Category float64
	Caption  float64
}

// For returns the weight of kind.
func (w Weights) For(kind models.SignalKind) float64 {
	switch kind {
	case models.SignalText:
		return w.Text
	case models.SignalCategory:
		return w.Category
	case models.SignalCaption:
		return w.Caption
	}

	return 0
}

// Total returns the sum of all weights.
func (w Weights) Total() float64 {
	return w.Text + w.Category + w.Caption
}

// Options tune an Engine.
type Options struct {
	StopWords             []string
	TemplatePhrases       []string
	Brands                []string
	Vocabulary            []string
	Weights               Weights
	MinCategoryConfidence float64
	MinTextConfidence     float64
	MinCaptionConfidence  float64
	MaxQueries            int
	MaxCaptionKeywords    int
	MaxTextTokens         int
}

// OptionsFromConfig maps the fusion config section onto engine options.
// Configured word lists extend the built-in ones.
func OptionsFromConfig(cfg config.FusionConfig) Options {
	return Options{
		StopWords:             cfg.StopWords,
		TemplatePhrases:       cfg.TemplatePhrases,
		Brands:                cfg.Brands,
		Vocabulary:            cfg.Vocabulary,
		Weights:               Weights{Text: cfg.Weights.Text, Category: cfg.Weights.Category, Caption: cfg.Weights.Caption},
		MinCategoryConfidence: cfg.MinCategoryConfidence,
		MinTextConfidence:     cfg.MinTextConfidence,
		MinCaptionConfidence:  cfg.MinCaptionConfidence,
		MaxQueries:            cfg.MaxQueries,
		MaxCaptionKeywords:    cfg.MaxCaptionKeywords,
		MaxTextTokens:         cfg.MaxTextTokens,
	}
}

// DefaultOptions returns the options of the default configuration.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Fusion)
}

// Engine fuses recognition signals into canonical queries. It is stateless
// after construction and safe for concurrent use.
type Engine struct {
	logger     *logger.Logger
	stopWords  map[string]bool
	brands     map[string]bool
	vocabulary map[string]bool
	templates  []string
	opts       Options
}

// NewEngine creates a fusion engine.
func NewEngine(opts Options, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Discard()
	}

	if opts.MaxQueries < 1 {
		opts.MaxQueries = 3
	}

	if opts.MaxCaptionKeywords < 1 {
		opts.MaxCaptionKeywords = 4
	}

	if opts.MaxTextTokens < 1 {
		opts.MaxTextTokens = 4
	}

	if opts.Weights.Total() <= 0 {
		opts.Weights = DefaultOptions().Weights
	}

	templates := make([]string, 0, len(DefaultTemplatePhrases)+len(opts.TemplatePhrases))
	for _, p := range append(append([]string(nil), DefaultTemplatePhrases...), opts.TemplatePhrases...) {
		if f := fold(p); f != "" {
			templates = append(templates, f)
		}
	}

	// Longer phrases first so "on a white background" wins over shorter overlaps.
	sort.SliceStable(templates, func(i, j int) bool { return len(templates[i]) > len(templates[j]) })

	return &Engine{
		logger:     log.Component("fusion"),
		stopWords:  wordSet(DefaultStopWords, opts.StopWords),
		brands:     wordSet(KnownBrands, opts.Brands),
		vocabulary: vocabularySet(opts.Vocabulary),
		templates:  templates,
		opts:       opts,
	}
}

type candidate struct {
	text  string
	kind  models.SignalKind
	score float64
}

// Fuse produces between one and MaxQueries queries. A non-blank userQuery is
// always rank 0 with confidence 1. The output depends only on the inputs, not
// on signal order.
func (e *Engine) Fuse(signals []models.RecognitionSignal, userQuery string) ([]models.CanonicalQuery, error) {
	user := NormalizeQuery(userQuery)
	total := e.opts.Weights.Total()

	byText := make(map[string]*candidate)
	weak := make(map[string]*candidate)

	for _, sig := range orderSignals(signals) {
		text := e.candidateText(sig)
		if text == "" || text == user {
			continue
		}

		contribution := e.opts.Weights.For(sig.Kind) * sig.Confidence / total

		if sig.Confidence < e.minConfidence(sig.Kind) {
			e.logger.Debug("signal below threshold", "kind", sig.Kind, "confidence", sig.Confidence)
			accumulate(weak, text, sig.Kind, contribution)

			continue
		}

		accumulate(byText, text, sig.Kind, contribution)
	}

	candidates := rankCandidates(byText)

	// Fall back to the strongest weak candidate when nothing else qualifies.
	if len(candidates) == 0 && user == "" && len(weak) > 0 {
		best := rankCandidates(weak)[0]
		e.logger.Debug("using below-threshold candidate", "text", best.text, "kind", best.kind, "score", best.score)
		candidates = []candidate{best}
	}

	queries := make([]models.CanonicalQuery, 0, e.opts.MaxQueries)
	if user != "" {
		queries = append(queries, models.CanonicalQuery{Text: user, Confidence: 1})
	}

	for _, c := range candidates {
		if len(queries) == e.opts.MaxQueries {
			break
		}

		queries = append(queries, models.CanonicalQuery{Text: c.text, Confidence: c.score})
	}

	if len(queries) == 0 {
		return nil, ErrNoSignalAvailable
	}

	for i := range queries {
		queries[i].Rank = i
	}

	e.logger.Debug("fused queries", "signals", len(signals), "queries", len(queries), "top", queries[0].Text)

	return queries, nil
}

func accumulate(m map[string]*candidate, text string, kind models.SignalKind, contribution float64) {
	c, ok := m[text]
	if !ok {
		m[text] = &candidate{text: text, kind: kind, score: contribution}

		return
	}

	c.score += contribution
	if kind.Priority() < c.kind.Priority() {
		c.kind = kind
	}
}

// rankCandidates caps scores at 1 and sorts by score, then kind priority,
// then text.
func rankCandidates(m map[string]*candidate) []candidate {
	candidates := make([]candidate, 0, len(m))
	for _, c := range m {
		if c.score > 1 {
			c.score = 1
		}

		candidates = append(candidates, *c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}

		if a.kind.Priority() != b.kind.Priority() {
			return a.kind.Priority() < b.kind.Priority()
		}

		return a.text < b.text
	})

	return candidates
}

// orderSignals returns a copy of signals in a canonical order so that score
// sums do not depend on arrival order.
func orderSignals(signals []models.RecognitionSignal) []models.RecognitionSignal {
	ordered := append([]models.RecognitionSignal(nil), signals...)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Kind.Priority() != b.Kind.Priority() {
			return a.Kind.Priority() < b.Kind.Priority()
		}

		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}

		return strings.Join(a.RawValue(), " ") < strings.Join(b.RawValue(), " ")
	})

	return ordered
}

func (e *Engine) minConfidence(kind models.SignalKind) float64 {
	switch kind {
	case models.SignalText:
		return e.opts.MinTextConfidence
	case models.SignalCategory:
		return e.opts.MinCategoryConfidence
	case models.SignalCaption:
		return e.opts.MinCaptionConfidence
	}

	return 0
}

func (e *Engine) candidateText(sig models.RecognitionSignal) string {
	switch sig.Kind {
	case models.SignalText:
		return e.textCandidate(sig.Tokens)
	case models.SignalCategory:
		return fold(sig.Label)
	case models.SignalCaption:
		return e.captionCandidate(sig.Caption)
	}

	return ""
}

// textCandidate joins the meaningful OCR words, known brands first.
func (e *Engine) textCandidate(tokens []string) string {
	var brands, rest []string

	seen := make(map[string]bool)

	for _, raw := range tokens {
		for _, word := range strings.Fields(fold(raw)) {
			if seen[word] || !e.usableTextWord(word) {
				continue
			}

			seen[word] = true

			if e.brands[word] {
				brands = append(brands, word)
			} else {
				rest = append(rest, word)
			}
		}
	}

	words := append(brands, rest...)
	if len(words) > e.opts.MaxTextTokens {
		words = words[:e.opts.MaxTextTokens]
	}

	return strings.Join(words, " ")
}

func (e *Engine) usableTextWord(word string) bool {
	if e.brands[word] {
		return true
	}

	if len([]rune(word)) < 2 || len(word) > 24 || e.stopWords[word] {
		return false
	}

	if strings.ContainsAny(word, "0123456789") {
		return modelToken.MatchString(word)
	}

	return true
}

// captionCandidate strips captioner boilerplate and keeps the product phrase.
func (e *Engine) captionCandidate(caption string) string {
	text := " " + fold(caption) + " "
	for _, phrase := range e.templates {
		for {
			stripped := strings.ReplaceAll(text, " "+phrase+" ", " ")
			if stripped == text {
				break
			}

			text = stripped
		}
	}

	var kept []string

	for _, word := range strings.Fields(text) {
		if spatialWords[word] && len(kept) > 0 {
			break
		}

		if e.stopWords[word] || len([]rune(word)) < 2 {
			continue
		}

		kept = append(kept, word)
	}

	return strings.Join(e.preferVocabulary(kept), " ")
}

// preferVocabulary trims words to MaxCaptionKeywords, keeping product nouns
// first and preserving the caption's word order.
func (e *Engine) preferVocabulary(words []string) []string {
	limit := e.opts.MaxCaptionKeywords
	if len(words) <= limit {
		return words
	}

	keep := make([]bool, len(words))
	n := 0

	for i, w := range words {
		if n < limit && e.vocabulary[w] {
			keep[i] = true
			n++
		}
	}

	for i := range words {
		if n < limit && !keep[i] {
			keep[i] = true
			n++
		}
	}

	out := make([]string, 0, limit)
	for i, w := range words {
		if keep[i] {
			out = append(out, w)
		}
	}

	return out
}

// NormalizeQuery folds free text the same way candidate queries are folded.
func NormalizeQuery(q string) string {
	return fold(q)
}
