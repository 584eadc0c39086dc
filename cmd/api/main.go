package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/safar/medtrade/internal/cart"
	"github.com/safar/medtrade/internal/config"
	"github.com/safar/medtrade/internal/database"
	"github.com/safar/medtrade/internal/hospital"
	"github.com/safar/medtrade/internal/httpapi"
	"github.com/safar/medtrade/internal/inventory"
	"github.com/safar/medtrade/internal/logger"
	"github.com/safar/medtrade/internal/offer"
	"github.com/safar/medtrade/internal/order"
	"github.com/safar/medtrade/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		zlog.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	zlog.Info("connected to database")

	txOpts := database.DefaultTxOptions()
	txOpts.Timeout = cfg.Database.TxTimeout

	srv := httpapi.NewServer(httpapi.Services{
		Hospitals: hospital.NewService(db, zlog.Named("hospital"), txOpts),
		Offers:    offer.NewService(db, zlog.Named("offer"), txOpts),
		Carts:     cart.NewService(db, zlog.Named("cart"), txOpts),
		Orders:    order.NewService(db, zlog.Named("order"), txOpts),
		Wallets:   wallet.NewService(db, zlog.Named("wallet"), txOpts),
		Inventory: inventory.NewService(db, zlog.Named("inventory"), txOpts),
	}, zlog.Named("http"), cfg.Server.AdminToken)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zlog.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
}
