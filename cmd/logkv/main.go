//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/logkv/adapters/handlers/shell"
	"github.com/weaviate/logkv/adapters/repos/db/lsmkv"
	enterrors "github.com/weaviate/logkv/entities/errors"
	"github.com/weaviate/logkv/usecases/config"
	"github.com/weaviate/logkv/usecases/monitoring"
)

func main() {
	var opts config.Flags
	log := logrus.WithFields(logrus.Fields{"app": "logkv"}).Logger

	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.WithError(err).Fatal("failed to parse command line args")
	}

	cfg, err := config.LoadConfig(&opts, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	configureLogger(log, cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	storeOpts := []lsmkv.StoreOption{lsmkv.WithPread(cfg.Storage.UsePread)}
	if p := cfg.Storage.BloomFilterFalsePositiveRate; p > 0 {
		storeOpts = append(storeOpts, lsmkv.WithFilterFalsePositiveRate(p))
	}

	var gatherer prometheus.Gatherer
	if cfg.Monitoring.Enabled {
		prom := monitoring.NewPrometheusMetrics()
		gatherer = prom.Gatherer
		storeOpts = append(storeOpts, lsmkv.WithMetrics(
			lsmkv.NewMetrics(prom, filepath.Base(cfg.Persistence.DataPath))))
	}

	store, err := lsmkv.Open(ctx, cfg.Persistence.DataPath, cfg.StoreConfig(), log, storeOpts...)
	if err != nil {
		log.WithError(err).
			WithField("path", cfg.Persistence.DataPath).
			Fatal("failed to open store")
	}

	log.WithField("action", "startup").
		WithField("path", cfg.Persistence.DataPath).
		Debug("store opened")

	sessionDone := make(chan error, 1)
	enterrors.GoWrapper(func() {
		defer close(sessionDone)
		sessionDone <- shell.New(store, gatherer, log).Run(ctx, os.Stdin, os.Stdout)
	}, log)

	var sessionErr error
	select {
	case sessionErr = <-sessionDone:
	case <-ctx.Done():
		log.WithField("action", "shutdown").Info("received signal, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := store.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("failed to shut down store")
	}

	if sessionErr != nil && !errors.Is(sessionErr, context.Canceled) {
		log.WithError(sessionErr).Fatal("shell session ended with an error")
	}
}

func configureLogger(log *logrus.Logger, cfg config.Logging) {
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		// already validated by the config
		return
	}
	log.SetLevel(level)
}
