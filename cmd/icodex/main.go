package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/icodex/icodex/params"
	"github.com/icodex/icodex/pkg/api"
	"github.com/icodex/icodex/pkg/dex"
	"github.com/icodex/icodex/pkg/solana"
	"github.com/icodex/icodex/pkg/store"
	"github.com/icodex/icodex/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("") // "" means .env in the current directory

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("starting", "rpc_endpoint", cfg.RPCEndpoint, "order_book_file", cfg.OrderBookFile, "listen", cfg.ListenAddr)

	// ---- Persistence ----
	fileStore := store.NewFileStore(cfg.OrderBookFile)
	book, err := fileStore.Load()
	if err != nil {
		// A corrupt book file is fatal on purpose: starting fresh would
		// silently drop live orders.
		sugar.Fatalw("order_book_load_failed", "path", cfg.OrderBookFile, "err", err)
	}
	sugar.Infow("order_book_loaded", "orders", book.Len())

	fills, err := store.OpenFillLog(cfg.FillsDir)
	if err != nil {
		sugar.Fatalw("fill_log_open_failed", "dir", cfg.FillsDir, "err", err)
	}
	defer fills.Close()

	// ---- Core ----
	oracle := solana.NewRPCOracle(cfg.RPCEndpoint, cfg.OracleTimeout, sugar)
	engine := dex.NewMatchEngine(oracle)
	gateway := dex.NewGateway(book, fileStore, engine, sugar)
	gateway.SetFillRecorder(fills)

	// ---- API ----
	server := api.NewServer(gateway, fills, sugar)
	go func() {
		if err := server.Start(cfg.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	sugar.Infow("shutting_down", "signal", s.String())
}
