/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


// Package app wires the admin control plane together and runs it.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/carverauto/serviceradar-admin/pkg/api"
	"github.com/carverauto/serviceradar-admin/pkg/config"
	"github.com/carverauto/serviceradar-admin/pkg/lifecycle"
	"github.com/carverauto/serviceradar-admin/pkg/locks"
	"github.com/carverauto/serviceradar-admin/pkg/logger"
	"github.com/carverauto/serviceradar-admin/pkg/models"
	"github.com/carverauto/serviceradar-admin/pkg/telemetry"
	"github.com/carverauto/serviceradar-admin/pkg/version"
)

const serviceName = "serviceradar-admin"

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
	ListenAddr string
}

// Run boots the admin service using the provided options and blocks until
// it is stopped.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg models.AdminConfig
	if err := config.NewConfig(nil).LoadAndValidate(ctx, opts.ConfigPath, &cfg); err != nil {
		return err
	}

	if opts.ListenAddr != "" {
		cfg.ListenAddr = opts.ListenAddr
	}

	handle, err := lifecycle.CreateLogger(ctx, cfg.Logging, cfg.KnownComponents())
	if err != nil {
		return err
	}

	mainLogger := lifecycle.CreateComponentLogger(handle, "admin-main")

	mainLogger.Info().
		Interface("config", models.ExtractSafeConfigMetadata(cfg)).
		Str("version", version.GetFullVersion()).
		Msg("Starting admin control plane")

	tp, ctx, rootSpan, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		Logger:         mainLogger,
		OTel:           &cfg.Logging.OTel,
	})
	if err != nil {
		return err
	}

	if _, metricsErr := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		OTel:           &cfg.Logging.OTel,
	}); metricsErr != nil && !errors.Is(metricsErr, logger.ErrOTelMetricsDisabled) {
		rootSpan.End()
		_ = tp.Shutdown(context.WithoutCancel(ctx))

		return metricsErr
	}

	// instruments are created after the meter provider is installed
	requestStats, err := telemetry.NewRequestStats(nil)
	if err != nil {
		return err
	}

	lockCtl := locks.NewController(handle.WithComponent("locks"))

	apiOptions := []func(server *api.APIServer){
		api.WithLogger(handle.WithComponent("api")),
		api.WithLocks(lockCtl),
		api.WithLoggerHandle(handle),
		api.WithRequestStats(requestStats),
		api.WithAPIKey(cfg.APIKey),
		api.WithCORS(cfg.CORS),
	}

	var aggregator *telemetry.Aggregator

	if cfg.Telemetry.Disabled {
		mainLogger.Info().Msg("Telemetry collection disabled")
	} else {
		telemetryLogger := handle.WithComponent("telemetry")

		aggregator = telemetry.NewAggregator(telemetryLogger,
			telemetry.WithAppName(serviceName),
			telemetry.WithLockReader(lockCtl),
			telemetry.WithRequestStats(requestStats),
		)

		apiOptions = append(apiOptions, api.WithSnapshotter(telemetry.NewSnapshotter(aggregator, telemetryLogger)))
	}

	apiServer := api.NewAPIServer(apiOptions...)

	hooks := []lifecycle.ShutdownHook{
		{Name: "telemetry", Fn: func(context.Context) error {
			if aggregator != nil {
				aggregator.Close()
			}

			return nil
		}},
		{Name: "metrics", Fn: logger.ShutdownMetrics},
		{Name: "tracing", Fn: func(ctx context.Context) error {
			rootSpan.End()

			return tp.Shutdown(ctx)
		}},
		{Name: "logger", Fn: func(ctx context.Context) error {
			return lifecycle.ShutdownLogger(ctx, handle)
		}},
	}

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		Server:          apiServer.NewHTTPServer(&cfg),
		ShutdownTimeout: time.Duration(cfg.ShutdownTimeout),
		ShutdownHooks:   hooks,
		Logger:          mainLogger,
	})
}
