// Package aggregator fans queries out to the source adapters and assembles
// one deduplicated, ranked result.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"shopvision/internal/config"
	"shopvision/internal/logger"
	"shopvision/internal/models"
	"shopvision/internal/normalizer"
	"shopvision/internal/ranker"
	"shopvision/internal/sources"
)

// Aggregation errors.
var (
	ErrAggregationTimeout = errors.New("aggregation cancelled before any listing arrived")
	ErrNoQueries          = errors.New("no queries to aggregate")
	ErrRoundDeadline      = errors.New("round deadline elapsed")
	ErrBackingOff         = errors.New("source is backing off")
)

// Defaults used when options leave a field unset.
const (
	DefaultRoundDeadline  = 4 * time.Second
	DefaultAdapterTimeout = 3500 * time.Millisecond
	DefaultMaxResults     = 5
)

// Options tune a Pipeline.
type Options struct {
	MaxResults     map[string]int
	RoundDeadline  time.Duration
	AdapterTimeout time.Duration
	MinSources     int
}

// OptionsFromConfig builds pipeline options from the config.
func OptionsFromConfig(cfg *config.Config) Options {
	maxResults := make(map[string]int, len(cfg.Sources))
	for _, src := range cfg.Sources {
		maxResults[src.Name] = src.MaxResults
	}

	return Options{
		MaxResults:     maxResults,
		RoundDeadline:  cfg.Aggregation.RoundDeadline(),
		AdapterTimeout: cfg.Aggregation.AdapterTimeout(),
		MinSources:     cfg.Aggregation.MinSources,
	}
}

// Attempt records one adapter dispatch.
type Attempt struct {
	Err      error
	Source   string
	Query    string
	Kind     sources.ErrorKind
	Round    int
	Listings int
	Latency  time.Duration
	Skipped  bool
}

// Success reports whether the attempt returned without failure.
func (a Attempt) Success() bool {
	return a.Err == nil
}

// Pipeline dispatches queries to adapters in rounds.
type Pipeline struct {
	processor *normalizer.Processor
	ranker    *ranker.Ranker
	backoff   *BackoffRegistry
	logger    *logger.Logger
	now       func() time.Time
	adapters  []sources.Adapter
	opts      Options
}

// New creates a pipeline. Adapters are consulted and reported in the given order.
func New(adapters []sources.Adapter, processor *normalizer.Processor, rk *ranker.Ranker, backoff *BackoffRegistry, opts Options, log *logger.Logger) *Pipeline {
	if opts.RoundDeadline <= 0 {
		opts.RoundDeadline = DefaultRoundDeadline
	}

	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = DefaultAdapterTimeout
	}

	if log == nil {
		log = logger.Discard()
	}

	if backoff == nil {
		backoff = NewBackoffRegistry(0)
	}

	if processor == nil {
		processor = normalizer.NewProcessor(nil, log)
	}

	if rk == nil {
		rk = ranker.New(config.Default().Ranking, log)
	}

	return &Pipeline{
		processor: processor,
		ranker:    rk,
		backoff:   backoff,
		logger:    log.Component("aggregator"),
		now:       time.Now,
		adapters:  adapters,
		opts:      opts,
	}
}

// Sources returns the adapter names in dispatch order.
func (p *Pipeline) Sources() []string {
	names := make([]string, len(p.adapters))
	for i, a := range p.adapters {
		names[i] = a.Name()
	}

	return names
}

// Aggregate runs the queries against the adapters and returns the ranked result.
func (p *Pipeline) Aggregate(ctx context.Context, queries []models.CanonicalQuery) (*models.AggregationResult, error) {
	result, _, err := p.AggregateWithLog(ctx, queries)

	return result, err
}

type sourceState struct {
	failure   *models.SourceFailure
	attempted bool
	listings  int
}

type acceptedBatch struct {
	source   string
	listings []models.RawListing
	latency  time.Duration
	rank     int
}

// AggregateWithLog is Aggregate plus the log of every dispatch.
//
// Round 0 sends the top query to every adapter. While fewer than MinSources
// sources have produced listings and queries remain, the next query goes to
// the sources that failed or returned nothing. A round ends when all its calls
// answered or the round deadline passed; late calls are cancelled and ignored.
func (p *Pipeline) AggregateWithLog(ctx context.Context, queries []models.CanonicalQuery) (*models.AggregationResult, []Attempt, error) {
	if len(queries) == 0 {
		return nil, nil, ErrNoQueries
	}

	start := p.now()
	states := make([]sourceState, len(p.adapters))

	var (
		attempts []Attempt
		batches  []acceptedBatch
		used     []models.CanonicalQuery
	)

	for round, query := range queries {
		if ctx.Err() != nil {
			break
		}

		targets := p.targets(round, states)
		if len(targets) == 0 {
			break
		}

		used = append(used, query)

		p.logger.Debug("dispatching round", "round", round, "query", query.Text, "sources", len(targets))

		for _, out := range p.runRound(ctx, round, query, targets) {
			st := &states[out.idx]
			st.attempted = true
			attempts = append(attempts, out.attempt)

			if out.attempt.Err != nil {
				st.failure = &models.SourceFailure{
					Source:  out.attempt.Source,
					Kind:    string(out.attempt.Kind),
					Message: out.attempt.Err.Error(),
				}

				continue
			}

			st.failure = nil
			st.listings = len(out.listings)

			if len(out.listings) > 0 {
				batches = append(batches, acceptedBatch{source: out.attempt.Source, listings: out.listings, latency: out.attempt.Latency, rank: query.Rank})
			}
		}
	}

	result := p.assemble(states, batches, used)
	result.TotalLatencyMs = p.now().Sub(start).Milliseconds()

	if ctx.Err() != nil && len(result.Listings) == 0 {
		return nil, attempts, fmt.Errorf("%w: %w", ErrAggregationTimeout, ctx.Err())
	}

	p.logger.Info("aggregation complete",
		"queries", len(used),
		"listings", len(result.Listings),
		"succeeded", len(result.SourcesSucceeded),
		"failed", len(result.SourcesFailed),
		"dropped", result.DroppedListings,
		"latency_ms", result.TotalLatencyMs,
	)

	return result, attempts, nil
}

// targets returns adapter indices for round. Round 0 targets everyone; later
// rounds target sources without listings, and none once MinSources is met.
func (p *Pipeline) targets(round int, states []sourceState) []int {
	var targets []int

	if round == 0 {
		for i := range p.adapters {
			targets = append(targets, i)
		}

		return targets
	}

	withListings := 0

	for _, st := range states {
		if st.listings > 0 {
			withListings++
		}
	}

	if withListings >= p.opts.MinSources {
		return nil
	}

	for i, st := range states {
		if st.listings == 0 {
			targets = append(targets, i)
		}
	}

	return targets
}

type callOutcome struct {
	listings []models.RawListing
	attempt  Attempt
	idx      int
}

// runRound dispatches query to targets and returns one outcome per target in target order.
func (p *Pipeline) runRound(ctx context.Context, round int, query models.CanonicalQuery, targets []int) []callOutcome {
	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(map[int]callOutcome, len(targets))
	results := make(chan callOutcome, len(targets))
	pending := 0

	for _, idx := range targets {
		adapter := p.adapters[idx]
		base := Attempt{Round: round, Source: adapter.Name(), Query: query.Text}

		if blocked, remaining := p.backoff.Blocked(adapter.Name()); blocked {
			base.Skipped = true
			base.Kind = sources.KindRateLimited
			base.Err = sources.NewAdapterError(adapter.Name(), sources.KindRateLimited,
				fmt.Errorf("%w for %s", ErrBackingOff, remaining.Round(time.Millisecond)))
			outcomes[idx] = callOutcome{idx: idx, attempt: base}

			continue
		}

		pending++

		go func(idx int, adapter sources.Adapter, base Attempt) {
			results <- p.call(roundCtx, idx, adapter, query.Text, base)
		}(idx, adapter, base)
	}

	timer := time.NewTimer(p.opts.RoundDeadline)
	defer timer.Stop()

	var stopErr error

collect:
	for pending > 0 {
		select {
		case out := <-results:
			outcomes[out.idx] = out
			pending--
		case <-timer.C:
			stopErr = ErrRoundDeadline

			break collect
		case <-ctx.Done():
			stopErr = ctx.Err()

			break collect
		}
	}

	ordered := make([]callOutcome, 0, len(targets))

	for _, idx := range targets {
		out, ok := outcomes[idx]
		if !ok {
			name := p.adapters[idx].Name()
			out = callOutcome{idx: idx, attempt: Attempt{
				Round:   round,
				Source:  name,
				Query:   query.Text,
				Kind:    sources.KindTimeout,
				Err:     sources.NewAdapterError(name, sources.KindTimeout, stopErr),
				Latency: p.opts.RoundDeadline,
			}}
		}

		if out.attempt.Kind == sources.KindRateLimited && !out.attempt.Skipped {
			var ae *sources.AdapterError
			if errors.As(out.attempt.Err, &ae) {
				p.backoff.Record(out.attempt.Source, ae.RetryAfter)
			}
		}

		if out.attempt.Err != nil {
			p.logger.Warn("source failed", "round", round, "source", out.attempt.Source, "kind", out.attempt.Kind, "error", out.attempt.Err)
		}

		ordered = append(ordered, out)
	}

	return ordered
}

// call runs one adapter search bounded by the adapter timeout.
func (p *Pipeline) call(ctx context.Context, idx int, adapter sources.Adapter, query string, attempt Attempt) (out callOutcome) {
	callCtx, cancel := context.WithTimeout(ctx, p.opts.AdapterTimeout)
	defer cancel()

	start := p.now()
	out = callOutcome{idx: idx, attempt: attempt}

	defer func() {
		if r := recover(); r != nil {
			out.listings = nil
			out.attempt.Kind = sources.KindUnavailable
			out.attempt.Err = sources.NewAdapterError(adapter.Name(), sources.KindUnavailable, fmt.Errorf("panic: %v", r))
		}

		out.attempt.Latency = p.now().Sub(start)
	}()

	listings, err := adapter.Search(callCtx, query, p.maxResults(adapter.Name()))
	if err != nil {
		ae := sources.Classify(adapter.Name(), err)
		out.attempt.Kind = ae.Kind
		out.attempt.Err = ae

		return out
	}

	if limit := p.maxResults(adapter.Name()); len(listings) > limit {
		listings = listings[:limit]
	}

	out.listings = listings
	out.attempt.Listings = len(listings)

	return out
}

func (p *Pipeline) maxResults(source string) int {
	if n, ok := p.opts.MaxResults[source]; ok && n > 0 {
		return n
	}

	return DefaultMaxResults
}

// assemble normalizes accepted batches in dispatch order and ranks them.
func (p *Pipeline) assemble(states []sourceState, batches []acceptedBatch, used []models.CanonicalQuery) *models.AggregationResult {
	var fetched []normalizer.Fetched

	for _, b := range batches {
		for _, raw := range b.listings {
			if raw.Source == "" {
				raw.Source = b.source
			}

			fetched = append(fetched, normalizer.Fetched{
				Raw:  raw,
				Meta: normalizer.FetchMeta{Latency: b.latency, QueryRank: b.rank},
			})
		}
	}

	canonical, dropped := p.processor.ProcessBatch(fetched)

	result := &models.AggregationResult{
		Listings:         p.ranker.Rank(canonical),
		QueriesUsed:      append([]models.CanonicalQuery(nil), used...),
		SourcesSucceeded: []string{},
		SourcesFailed:    []models.SourceFailure{},
		DroppedListings:  dropped,
	}

	for i, st := range states {
		if !st.attempted {
			continue
		}

		if st.failure != nil {
			result.SourcesFailed = append(result.SourcesFailed, *st.failure)
		} else {
			result.SourcesSucceeded = append(result.SourcesSucceeded, p.adapters[i].Name())
		}
	}

	sort.Strings(result.SourcesSucceeded)
	sort.Slice(result.SourcesFailed, func(i, j int) bool {
		return result.SourcesFailed[i].Source < result.SourcesFailed[j].Source
	})

	if result.Listings == nil {
		result.Listings = []models.CanonicalListing{}
	}

	return result
}
