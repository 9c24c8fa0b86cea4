// Command mandi-survey predicts every market the service knows for a set of
// commodities and prints the price spread, to help pick alert targets.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rewired-gh/mandinetra/internal/catalog"
	"github.com/rewired-gh/mandinetra/internal/config"
	"github.com/rewired-gh/mandinetra/internal/logger"
	"github.com/rewired-gh/mandinetra/internal/models"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	commodities = flag.String("commodities", "", "Comma-separated commodity ids (default: all)")
	parallel    = flag.Int("parallel", 4, "Concurrent prediction requests")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := catalog.NewClient(cfg.API.BaseURL, cfg.API.Timeout, catalog.ClientConfig{
		MaxRetries:     cfg.API.MaxRetries,
		RetryDelayBase: cfg.API.RetryDelayBase,
	})

	ids := selectedCommodities(ctx, client, *commodities)
	if *parallel < 1 {
		*parallel = 1
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("MANDI PRICE SURVEY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Service: %s\n", cfg.API.BaseURL)
	fmt.Printf("Commodities: %s\n", strings.Join(ids, ", "))

	start := time.Now()
	obs, failures, err := sweep(ctx, client, ids, *parallel)
	if err != nil {
		logger.Fatal("Survey interrupted: %v", err)
	}
	fmt.Printf("Priced %d markets in %v\n", len(obs), time.Since(start).Round(time.Millisecond))

	stats := make(map[string]CommodityStats)
	for commodity, group := range groupByCommodity(obs) {
		stats[commodity] = calculateStats(commodity, group)
	}

	fmt.Println("\nPRICE SPREAD BY COMMODITY:")
	fmt.Println(strings.Repeat("-", 80))
	ranked := sortedCommodities(stats)
	for _, s := range ranked {
		printCommodityStats(s)
	}

	printFailures(failures)
	printRecommendations(ranked)
}

// selectedCommodities resolves the -commodities flag, falling back to what the service offers.
func selectedCommodities(ctx context.Context, client *catalog.Client, flagValue string) []string {
	if flagValue != "" {
		var ids []string
		for _, id := range strings.Split(flagValue, ",") {
			if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
				ids = append(ids, id)
			}
		}
		return ids
	}

	list := models.Commodities()
	if res, err := client.FetchCommodities(ctx); err == nil && res.IsOk() && len(res.Value) > 0 {
		list = res.Value
	} else {
		logger.Warn("Using built-in commodity catalogue")
	}

	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	return ids
}
