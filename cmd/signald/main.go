package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeAPmind/tradingsystem/internal/cache"
	"github.com/codeAPmind/tradingsystem/internal/config"
	"github.com/codeAPmind/tradingsystem/internal/dataroute"
	"github.com/codeAPmind/tradingsystem/internal/engine"
	"github.com/codeAPmind/tradingsystem/internal/execution"
	"github.com/codeAPmind/tradingsystem/internal/market"
	"github.com/codeAPmind/tradingsystem/internal/metrics"
	"github.com/codeAPmind/tradingsystem/internal/notify"
	"github.com/codeAPmind/tradingsystem/internal/paper"
	"github.com/codeAPmind/tradingsystem/internal/provider"
	"github.com/codeAPmind/tradingsystem/internal/risk"
	"github.com/codeAPmind/tradingsystem/internal/scheduler"
	sig "github.com/codeAPmind/tradingsystem/internal/signal"
	"github.com/codeAPmind/tradingsystem/internal/sizing"
	"github.com/codeAPmind/tradingsystem/internal/strategy"
	"github.com/codeAPmind/tradingsystem/internal/util"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to YAML config")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := cache.New(cfg.App.CacheDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open cache")
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

	sizer, err := sizing.New(sizingConfig(cfg.Sizing), log)
	if err != nil {
		log.Fatal().Err(err).Msg("build sizer")
	}
	gate := risk.NewGate(limits(cfg.Risk), log)

	var recorder paper.FillRecorder
	if cfg.Paper.TradeLogPath != "" {
		jsonl, err := paper.NewJSONLRecorder(cfg.Paper.TradeLogPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open trade log")
		}
		defer jsonl.Close()
		recorder = jsonl
	}
	startingCash := cfg.Paper.StartingCash
	if startingCash <= 0 {
		startingCash = 100000
	}
	account := paper.NewAccount(startingCash, recorder)

	bus := notify.NewBus(256, log)
	bus.Subscribe(notify.SubscriberFunc(func(s *sig.Signal) {
		log.Info().
			Str("ticker", s.Ticker).
			Str("type", string(s.Type)).
			Str("strategy", s.Strategy).
			Float64("price", s.Price).
			Str("reason", s.Reason).
			Msg("signal")
	}))
	if cfg.Kafka.Enabled {
		kp, err := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Fatal().Err(err).Msg("connect kafka")
		}
		defer kp.Close()
		bus.Subscribe(kp)
	}
	bus.Start()

	pipeline := engine.New(router, strategy.NewEngine(log), sizer, gate,
		execution.NewLogExecutor(log), account, log)

	sched := scheduler.New(pipeline.Run, log)
	sched.OnSignal(bus.Publish)
	sched.OnError(func(job, msg string) {
		log.Error().Str("job", job).Str("error", msg).Msg("scheduled run failed")
	})
	for _, job := range cfg.Jobs {
		err := sched.Add(scheduler.Job{
			Name:     job.Name,
			Ticker:   job.Ticker,
			At:       job.At,
			Strategy: job.Strategy,
			Params:   job.Params,
			Enabled:  job.Enabled,
		})
		if err != nil {
			log.Fatal().Err(err).Str("job", job.Name).Msg("register job")
		}
	}
	sched.Start(ctx)
	log.Info().Int("jobs", len(cfg.Jobs)).Msg("signal daemon started")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	sched.Stop()
	bus.Close()

	snap := account.Snapshot(nil)
	log.Info().
		Float64("cash", snap.Cash).
		Float64("realized_pnl", snap.RealizedPnL).
		Int("open_positions", len(snap.Holdings)).
		Msg("final account state")
}

func limits(r config.Risk) risk.Limits {
	l := risk.DefaultLimits()
	if r.MaxNotionalUS > 0 {
		l.MaxNotionalUS = r.MaxNotionalUS
	}
	if r.MaxNotionalHK > 0 {
		l.MaxNotionalHK = r.MaxNotionalHK
	}
	if r.MaxNotionalCN > 0 {
		l.MaxNotionalCN = r.MaxNotionalCN
	}
	if r.MaxDailyTrades > 0 {
		l.MaxDailyTrades = r.MaxDailyTrades
	}
	if r.MaxTickerRatio > 0 {
		l.MaxTickerRatio = r.MaxTickerRatio
	}
	if r.MaxTotalRatio > 0 {
		l.MaxTotalRatio = r.MaxTotalRatio
	}
	if r.StopLoss < 0 {
		l.StopLoss = r.StopLoss
	}
	if r.TakeProfit > 0 {
		l.TakeProfit = r.TakeProfit
	}
	return l
}

func sizingConfig(s config.Sizing) sizing.Config {
	c := sizing.DefaultConfig()
	if s.WinRate > 0 {
		c.WinRate = s.WinRate
	}
	if s.AvgWin > 0 {
		c.AvgWin = s.AvgWin
	}
	if s.AvgLoss > 0 {
		c.AvgLoss = s.AvgLoss
	}
	if s.Fraction > 0 {
		c.Fraction = s.Fraction
	}
	if s.MinPosition > 0 {
		c.MinPosition = s.MinPosition
	}
	if s.MaxPosition > 0 {
		c.MaxPosition = s.MaxPosition
	}
	return c
}
