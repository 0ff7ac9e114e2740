// Package main provides the shopvision command: photo or text in, ranked listings out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"shopvision/internal/config"
	"shopvision/internal/core"
	"shopvision/internal/formatter"
	"shopvision/internal/fusion"
	"shopvision/internal/logger"
	"shopvision/internal/models"
	"shopvision/internal/ranker"
)

type output struct {
	Result   *models.AggregationResult `json:"result"`
	Analysis *ranker.PriceAnalysis     `json:"priceAnalysis,omitempty"`
}

func main() {
	os.Exit(execute())
}

// execute runs the command and returns its exit code, so deferred cleanup
// finishes before the process exits.
func execute() int {
	configFile := flag.String("config", "", "Path to YAML configuration file (default configs/shopvision.yaml if present)")
	imagePath := flag.String("image", "", "Product photo to search for")
	query := flag.String("query", "", "Search text; leads the fused queries when an image is given")
	specs := flag.String("spec", "", "Comma-separated terms every listing title must contain, e.g. 128gb,black")
	format := flag.String("format", "table", "Output format: table or json")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall search timeout")

	flag.Parse()

	_ = godotenv.Load()

	if *imagePath == "" && strings.TrimSpace(*query) == "" {
		fmt.Fprintln(os.Stderr, "❌ Please provide -image or -query")
		flag.PrintDefaults()

		return 2
	}

	if *format != "table" && *format != "json" {
		fmt.Fprintf(os.Stderr, "❌ Unknown format %q (want table or json)\n", *format)

		return 2
	}

	cfg, err := config.Resolve(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)

		return 1
	}

	log := logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	log.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	svc, err := core.NewFromConfig(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start search core", "error", err)

		return 1
	}
	defer svc.Close()

	result, err := run(ctx, svc, *imagePath, *query)
	if err != nil {
		switch {
		case errors.Is(err, fusion.ErrNoSignalAvailable):
			log.Error("nothing recognizable in the image; try adding -query", "error", err)
		default:
			log.Error("search failed", "error", err)
		}

		return 1
	}

	if terms := splitSpecs(*specs); len(terms) > 0 {
		result.Listings = ranker.FilterBySpecs(result.Listings, terms...)
	}

	analysis := ranker.AnalyzePrices(result.Listings)

	if *format == "json" {
		out, err := formatter.JSON(output{Result: result, Analysis: analysis})
		if err != nil {
			log.Error("failed to render result", "error", err)

			return 1
		}

		fmt.Println(out)

		return 0
	}

	fmt.Print(formatter.RenderResult(result, analysis))

	return 0
}

func run(ctx context.Context, svc *core.Service, imagePath, query string) (*models.AggregationResult, error) {
	if imagePath == "" {
		return svc.SearchByText(ctx, query)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	img := models.Image{Data: data, MIMEType: http.DetectContentType(data)}

	return svc.DetectAndSearch(ctx, img, query)
}

func splitSpecs(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
