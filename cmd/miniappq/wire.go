package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/zap"

	"github.com/ericfisherdev/miniappq/internal/adapter/driven/filesystem"
	"github.com/ericfisherdev/miniappq/internal/adapter/driven/proxycheck"
	sqliteadapter "github.com/ericfisherdev/miniappq/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/miniappq/internal/adapter/driven/telegram"
	"github.com/ericfisherdev/miniappq/internal/application"
	"github.com/ericfisherdev/miniappq/internal/config"
	"github.com/ericfisherdev/miniappq/internal/domain/model"
)

// app holds the adapters and services shared by serve and generate.
type app struct {
	db         *sqliteadapter.DB
	queries    *sqliteadapter.QueryRepo
	identities *sqliteadapter.IdentityRepo
	proxies    *sqliteadapter.ProxyRepo
	batch      *application.BatchDriver
	protoLog   *zap.Logger
}

// newApp opens the database, drops and recreates the schema, and wires the
// acquisition pipeline.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", db.Path())

	if err := sqliteadapter.ResetSchema(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("schema reset")

	protoLog := zap.NewNop()
	if cfg.ProtocolDebug {
		if protoLog, err = zap.NewDevelopment(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create protocol logger: %w", err)
		}
	}

	a := &app{
		db:         db,
		queries:    sqliteadapter.NewQueryRepo(db),
		identities: sqliteadapter.NewIdentityRepo(db),
		proxies:    sqliteadapter.NewProxyRepo(db),
		protoLog:   protoLog,
	}

	platform := telegram.NewPlatform(cfg.APIID, cfg.APIHash, slog.Default(), protoLog)
	checker := proxycheck.NewChecker(cfg.ProbeURL, cfg.ProbeTimeout, slog.Default())

	acquirer := application.NewAcquirer(
		platform,
		checker,
		a.identities,
		a.queries,
		model.WebAppParams{
			Platform:   cfg.WebAppPlatform,
			StartParam: cfg.StartParam,
			ShortName:  cfg.AppShortName,
		},
		cfg.FloodJitter,
	)

	a.batch = application.NewBatchDriver(
		acquirer,
		filesystem.NewSessionDir(cfg.SessionsDir),
		filesystem.NewProxyFile(cfg.ProxyFile),
		a.proxies,
		failurePolicy(cfg.OnError),
	)

	return a, nil
}

func (a *app) Close() {
	_ = a.protoLog.Sync()
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func failurePolicy(p config.ErrorPolicy) application.FailurePolicy {
	if p == config.ErrorPolicySkip {
		return application.SkipFailures
	}
	return application.AbortOnFailure
}
