// fetch is a cache maintenance tool: warm the local bar cache for a ticker,
// dump what it already holds, or clear it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeAPmind/tradingsystem/internal/cache"
	"github.com/codeAPmind/tradingsystem/internal/config"
	"github.com/codeAPmind/tradingsystem/internal/dataroute"
	"github.com/codeAPmind/tradingsystem/internal/market"
	"github.com/codeAPmind/tradingsystem/internal/provider"
	"github.com/codeAPmind/tradingsystem/internal/util"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to YAML config")
	ticker := flag.String("ticker", "", "ticker to fetch (any supported market form)")
	start := flag.String("start", "", "range start, YYYY-MM-DD (default 1 year ago)")
	end := flag.String("end", "", "range end, YYYY-MM-DD (default today)")
	force := flag.Bool("force", false, "bypass the cache and refetch")
	list := flag.Bool("list", false, "list cache entries and exit")
	clear := flag.Bool("clear", false, "clear the ticker's cache entries and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	store, err := cache.New(cfg.App.CacheDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open cache")
	}

	if *list {
		for _, e := range store.Entries() {
			fmt.Printf("%-12s %s .. %s  %d rows\n", e.Ticker, e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"), e.Rows)
		}
		fmt.Printf("cache size: %d bytes\n", store.Size())
		return
	}

	if *ticker == "" {
		flag.Usage()
		os.Exit(2)
	}

	if *clear {
		_, canonical := market.Classify(*ticker)
		removed := store.Clear(canonical)
		log.Info().Str("ticker", canonical).Int("entries", removed).Msg("cache cleared")
		return
	}

	endDay := time.Now()
	startDay := endDay.AddDate(-1, 0, 0)
	if *start != "" {
		if startDay, err = time.Parse("2006-01-02", *start); err != nil {
			log.Fatal().Err(err).Msg("parse -start")
		}
	}
	if *end != "" {
		if endDay, err = time.Parse("2006-01-02", *end); err != nil {
			log.Fatal().Err(err).Msg("parse -end")
		}
	}

	timeout := time.Duration(cfg.Providers.TimeoutSecs) * time.Second
	router := dataroute.New(store, log, dataroute.WithTimeout(timeout))
	if cfg.Providers.US.BaseURL != "" {
		router.Register(market.US, provider.NewUS(cfg.Providers.US.BaseURL, cfg.Providers.US.APIKey, timeout, log))
	}
	if cfg.Providers.HK.GatewayURL != "" {
		router.Register(market.HK, provider.NewHK(cfg.Providers.HK.GatewayURL, timeout, log))
	}
	if cfg.Providers.CN.BaseURL != "" {
		router.Register(market.CN, provider.NewCN(cfg.Providers.CN.BaseURL, cfg.Providers.CN.Token, timeout, log))
	}

	bars, err := router.GetSeries(context.Background(), *ticker, startDay, endDay, *force)
	if err != nil {
		log.Fatal().Err(err).Msg("fetch")
	}
	first, last, _ := bars.Bounds()
	log.Info().
		Str("ticker", *ticker).
		Int("bars", len(bars)).
		Str("first", first.Format("2006-01-02")).
		Str("last", last.Format("2006-01-02")).
		Msg("cache warmed")
}
