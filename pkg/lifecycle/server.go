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


package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/serviceradar-admin/pkg/logger"
)

var errServerRequired = errors.New("server is required")

const defaultShutdownTimeout = 10 * time.Second

// ShutdownHook releases one resource after the server stopped accepting requests.
type ShutdownHook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// ServerOptions configures RunServer.
type ServerOptions struct {
	Server *http.Server
	// Listener is used instead of listening on Server.Addr when set.
	Listener        net.Listener
	ShutdownTimeout time.Duration
	// ShutdownHooks run in order once the server has shut down, sharing
	// the shutdown timeout.
	ShutdownHooks []ShutdownHook
	Logger        logger.Logger
}

// RunServer serves until ctx is cancelled, SIGINT or SIGTERM arrives, or the
// server fails. It then shuts the server down gracefully and runs the hooks.
// A clean stop returns nil.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	if opts == nil || opts.Server == nil {
		return errServerRequired
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	// errgroup keeps only the first error; both sides are reported.
	var serveErr, shutdownErr error

	g.Go(func() error {
		log.Info().Str("listen_addr", listenAddr(opts)).Msg("Starting HTTP API server")

		var err error
		if opts.Listener != nil {
			err = opts.Server.Serve(opts.Listener)
		} else {
			err = opts.Server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("HTTP API server error: %w", err)
		}

		return serveErr
	})

	g.Go(func() error {
		<-gCtx.Done()

		log.Info().Msg("Shutting down HTTP API server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		var errs []error

		if err := opts.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down HTTP server: %w", err))
		}

		for _, hook := range opts.ShutdownHooks {
			if err := hook.Fn(shutdownCtx); err != nil {
				log.Error().Err(err).Str("hook", hook.Name).Msg("Shutdown hook failed")
				errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
			}
		}

		shutdownErr = errors.Join(errs...)

		return shutdownErr
	})

	_ = g.Wait()

	err := errors.Join(serveErr, shutdownErr)
	if err == nil {
		log.Info().Msg("HTTP API server stopped")
	}

	return err
}

func listenAddr(opts *ServerOptions) string {
	if opts.Listener != nil {
		return opts.Listener.Addr().String()
	}

	return opts.Server.Addr
}
