package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/bookworm-labs/catalog/api"
	"github.com/bookworm-labs/catalog/config"
	"github.com/bookworm-labs/catalog/store"
)

func main() {
	_ = godotenv.Load()

	defaultCfg := config.DefaultAPIConfig()
	addrDefault := defaultCfg.ListenAddr
	if value, ok := config.EnvString("API_ADDR"); ok {
		addrDefault = value
	}
	dataDefault := defaultCfg.DataFile
	if value, ok := config.EnvString("API_DATA_FILE"); ok {
		dataDefault = value
	}

	listenAddr := flag.String("addr", addrDefault, "HTTP listen address")
	dataFile := flag.String("data", dataDefault, "Path to the ingested catalog CSV")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultAPIConfig()
	cfg.ListenAddr = *listenAddr
	cfg.DataFile = *dataFile
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	st := store.Open(cfg.DataFile)
	router := api.NewRouter(api.NewHandler(st), api.NewMetrics())

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SIGHUP swaps in a freshly ingested dataset without a restart.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			if err := st.Reload(cfg.DataFile); err != nil {
				slog.Error("catalog reload failed, keeping current dataset", slog.Any("error", err))
			}
		}
	}()

	go func() {
		slog.Info("catalog API listening",
			slog.String("addr", cfg.ListenAddr),
			slog.String("data_file", cfg.DataFile),
			slog.Int("books", st.Count()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
