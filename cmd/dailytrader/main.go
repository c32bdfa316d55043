package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"dailytrader/config"
	"dailytrader/internal/advisor"
	"dailytrader/internal/bot"
	"dailytrader/internal/broker"
	"dailytrader/internal/execution"
	"dailytrader/internal/logger"
	"dailytrader/internal/marketdata"
	"dailytrader/internal/marketdata/stream"
	"dailytrader/internal/markethours"
	"dailytrader/internal/metrics"
	"dailytrader/internal/notification"
	"dailytrader/internal/portfolio"
	"dailytrader/internal/predictor"
	"dailytrader/internal/store"
	"dailytrader/internal/strategy"
)

func main() {
	var (
		train   = flag.Bool("train", false, "train the price model before analyzing")
		execute = flag.Bool("execute", false, "execute trades (overrides EXECUTE_TRADES)")
		status  = flag.Bool("status", false, "print portfolio status and exit")
		force   = flag.Bool("force", false, "run even on non-trading days")
	)
	flag.Parse()

	log := logger.Init("dailytrader", slog.LevelInfo)
	cfg := config.Load()
	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Error("no symbols configured")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- Market data ----
	var source marketdata.Source = marketdata.NewYahooClient("", log)
	var barCache *marketdata.CachedSource
	if cfg.RedisAddr != "" {
		cached, err := marketdata.NewCachedSource(source, marketdata.CacheConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}, log)
		if err != nil {
			log.Warn("bar cache unavailable, using direct source", "error", err)
		} else {
			source = cached
			barCache = cached
			defer cached.Close()
		}
	}

	// ---- Optional collaborators ----
	var adv advisor.Advisor
	if cfg.OpenAIAPIKey != "" {
		openai, err := advisor.NewOpenAI(advisor.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
		}, log)
		if err != nil {
			log.Warn("could not initialize AI advisor", "error", err)
		} else {
			adv = openai
			log.Info("AI advisor enabled", "model", cfg.OpenAIModel)
		}
	}

	var pred predictor.Predictor
	if cfg.ONNXModelPath != "" {
		onnx, err := predictor.NewONNX(cfg.ONNXModelPath)
		if err != nil {
			log.Warn("could not load ONNX model, falling back to ridge regression", "error", err)
			pred = predictor.NewLinear(predictor.LinearConfig{})
		} else {
			pred = onnx
			defer onnx.Close()
			log.Info("ONNX price model loaded", "path", cfg.ONNXModelPath)
		}
	} else {
		pred = predictor.NewLinear(predictor.LinearConfig{})
	}

	// ---- Strategy ----
	strategyCfg := strategy.DefaultConfig()
	strategyCfg.LookbackDays = cfg.LookbackDays
	strategyCfg.VolumeThreshold = cfg.VolumeThreshold
	strategyCfg.MinConfidence = cfg.MinConfidence
	strategyCfg.StopLossPct = cfg.StopLossPct
	strategyCfg.TakeProfitPct = cfg.TakeProfitPct
	engine := strategy.NewEngine(source, adv, pred, strategyCfg, log)

	// ---- Broker and persistence ----
	paper := broker.NewPaper(cfg.InitialBalance)

	stateStore, err := store.NewStateStore(cfg.DataDir)
	if err != nil {
		log.Error("state store init failed", "error", err)
		os.Exit(1)
	}
	if state, ok, err := stateStore.LoadPortfolio(); err != nil {
		log.Error("portfolio restore failed", "error", err)
		os.Exit(1)
	} else if ok {
		paper.Restore(state.State)
		log.Info("portfolio restored", "balance", state.Balance,
			"positions", len(state.Positions), "last_updated", state.LastUpdated)
	}

	journal, err := execution.NewJournal(cfg.JournalPath, log)
	if err != nil {
		log.Error("journal init failed", "error", err)
		os.Exit(1)
	}
	defer journal.Close()

	// ---- Metrics ----
	prom := metrics.NewMetrics()
	engine.Instrument(prom)
	var redisClient *goredis.Client
	if barCache != nil {
		barCache.Instrument(prom)
		redisClient = barCache.Client()
	}

	health := metrics.NewHealthStatus()
	health.StartLivenessChecker(ctx, redisClient, journal.DB(), 30*time.Second)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, log)
	metricsSrv.Start()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsSrv.Stop(shutdownCtx)
	}()

	// ---- Streaming quotes ----
	var quotes bot.QuoteSource
	if cfg.QuoteWSURL != "" {
		feed := stream.New(stream.Config{URL: cfg.QuoteWSURL}, log)
		feed.Subscribe(symbols...)
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("quote feed stopped", "error", err)
			}
		}()
		quotes = feed
	}

	// ---- Notifications ----
	var notifiers notification.Multi
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers,
			notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, log))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL, log))
	}
	var notifier notification.Notifier
	if len(notifiers) > 0 {
		notifier = notifiers
	}

	// ---- Risk limits ----
	risk := portfolio.NewRiskManager(portfolio.RiskLimits{
		MaxPositionQty:   cfg.MaxPositionQty,
		MaxOpenPositions: cfg.MaxOpenPositions,
		MaxExposure:      cfg.MaxExposure,
		MaxDrawdownPct:   cfg.MaxDrawdownPct,
	}, cfg.InitialBalance, log)

	// ---- Bot ----
	b := bot.New(engine, source, paper, pred, bot.Options{
		Journal:         journal,
		Store:           stateStore,
		Metrics:         prom,
		Quotes:          quotes,
		Notifier:        notifier,
		Risk:            risk,
		DefaultQuantity: cfg.DefaultQuantity,
	}, log)

	if err := b.Connect(); err != nil {
		log.Error("broker connect failed", "error", err)
		os.Exit(1)
	}
	defer b.Disconnect()
	health.SetBrokerConnected(true)

	if *status {
		printStatus(ctx, b, log)
		return
	}

	now := time.Now()
	log.Info("market status", "status", markethours.StatusString(now))
	if !markethours.IsTradingDay(now) && !*force {
		log.Info("not a trading day, skipping session (use -force to override)")
		return
	}

	if *train {
		for _, symbol := range symbols {
			if _, err := b.TrainModel(ctx, symbol, 365); err != nil {
				log.Warn("training failed, predictor disabled for this run",
					"symbol", symbol, "error", err)
			}
		}
	}

	executeTrades := cfg.ExecuteTrades || *execute
	result, err := b.RunSession(ctx, symbols, executeTrades)
	if err != nil {
		log.Error("trading session failed", "error", err)
		os.Exit(1)
	}
	health.SetLastAnalysisAt(time.Now())

	for _, sig := range result.Signals {
		log.Info("signal", "symbol", sig.Symbol, "action", sig.Action,
			"confidence", sig.Confidence, "reasoning", sig.Reasoning)
	}
	printStatus(ctx, b, log)
}

func printStatus(ctx context.Context, b *bot.Bot, log *slog.Logger) {
	status, err := b.PortfolioStatus(ctx)
	if err != nil {
		log.Error("portfolio status failed", "error", err)
		return
	}
	log.Info("portfolio",
		"cash", status.CashBalance,
		"position_value", status.PositionValue,
		"total_value", status.TotalValue)
	for _, pos := range status.Positions {
		log.Info("position", "symbol", pos.Symbol, "qty", pos.Quantity,
			"avg_price", pos.AvgPrice, "current_price", pos.CurrentPrice,
			"pl", pos.ProfitLoss, "pl_pct", pos.ProfitLossPct)
	}
}
