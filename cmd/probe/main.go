// Package main provides the probe command for exercising one source adapter.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"shopvision/internal/config"
	"shopvision/internal/formatter"
	"shopvision/internal/logger"
	"shopvision/internal/sources"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	configFile := flag.String("config", "", "Path to YAML configuration file")
	sourceName := flag.String("source", config.SourceAmazon, "Source to query: "+strings.Join(config.KnownSources, ", "))
	query := flag.String("query", "", "Search text")
	maxResults := flag.Int("max", 0, "Maximum listings (default: source max_results)")

	flag.Parse()

	_ = godotenv.Load()

	if strings.TrimSpace(*query) == "" {
		fmt.Fprintln(os.Stderr, "❌ Please provide -query")

		return 2
	}

	cfg, err := config.Resolve(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)

		return 1
	}

	log := logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	src, ok := cfg.GetSource(strings.ToLower(*sourceName))
	if !ok {
		fmt.Fprintf(os.Stderr, "❌ Source %q is not configured\n", *sourceName)

		return 1
	}

	adapter, err := sources.New(src, cfg.HTTP, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)

		return 1
	}

	limit := src.MaxResults
	if *maxResults > 0 {
		limit = *maxResults
	}

	fmt.Printf("🔎 %s: %q (max %d)\n", adapter.Name(), *query, limit)

	ctx, cancel := context.WithTimeout(context.Background(), src.Timeout()+time.Second)
	defer cancel()

	start := time.Now()
	listings, err := adapter.Search(ctx, *query, limit)

	if err != nil {
		var ae *sources.AdapterError
		if errors.As(err, &ae) {
			fmt.Printf("❌ %s failed (%s) after %v: %v\n", ae.Source, ae.Kind, time.Since(start).Round(time.Millisecond), ae.Err)

			if ae.RetryAfter > 0 {
				fmt.Printf("   retry after %v\n", ae.RetryAfter)
			}
		} else {
			fmt.Printf("❌ %v\n", err)
		}

		return 1
	}

	fmt.Printf("✅ %d listings in %v\n\n", len(listings), time.Since(start).Round(time.Millisecond))
	fmt.Println(strings.Join(formatter.RenderRawListings(listings), "\n"))

	return 0
}
