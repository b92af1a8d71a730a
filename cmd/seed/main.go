// FraudLens - Fraud ring detection over the entity graph.
// Copyright (c) 2025 finsec
// Licensed under the Apache License 2.0

// Command seed populates a graph store with synthetic banking data and
// embedded fraud patterns for demos.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/finsec/fraudlens/internal/domain"
	"github.com/finsec/fraudlens/internal/generator"
	"github.com/finsec/fraudlens/internal/graph"
)

func main() {
	var (
		customers    = flag.Int("customers", 100, "number of legitimate customers")
		transactions = flag.Int("transactions", 1000, "number of background transactions")
		merchants    = flag.Int("merchants", 20, "number of merchants")
		devices      = flag.Int("devices", 50, "number of devices")
		seed         = flag.Int64("seed", 1, "rng seed")
		sqlitePath   = flag.String("db", "./fraudlens.db", "sqlite database path")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	store, err := graph.New(domain.GraphStoreConfig{
		Driver:     "sqlite",
		SQLitePath: *sqlitePath,
	})
	if err != nil {
		slog.Error("failed to open graph store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	gen := generator.New(store, logger, generator.Params{
		Customers:    *customers,
		Transactions: *transactions,
		Merchants:    *merchants,
		Devices:      *devices,
		Seed:         *seed,
		Now:          time.Now().UTC(),
	})

	summary, err := gen.Generate(context.Background())
	if err != nil {
		slog.Error("generation failed", "error", err)
		os.Exit(1)
	}

	slog.Info("seed complete",
		"customers", summary.Customers,
		"accounts", summary.Accounts,
		"merchants", summary.Merchants,
		"devices", summary.Devices,
		"transactions", summary.Transactions,
		"circular_rings", summary.CircularRings,
		"fan_out_bursts", summary.FanOutBursts,
		"mule_chains", summary.MuleChains,
		"shared_device_groups", summary.SharedDeviceGroups,
	)
}
