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


// Package lifecycle creates the process logger and runs the HTTP server until
// it is signalled to stop.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/carverauto/serviceradar-admin/pkg/logger"
)

const loggerShutdownTimeout = 5 * time.Second

// CreateLogger builds the live logger handle. components are the names that
// may carry their own level; a nil config uses the defaults.
func CreateLogger(ctx context.Context, config *logger.Config, components []string) (*logger.Handle, error) {
	if config == nil {
		config = logger.DefaultConfig()
	}

	h, err := logger.NewHandle(ctx, config, logger.WithComponents(components...))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return h, nil
}

// CreateComponentLogger returns a logger tagged with component that follows
// later configuration changes of h.
func CreateComponentLogger(h *logger.Handle, component string) logger.Logger {
	return h.WithComponent(component)
}

// ShutdownLogger flushes any pending OTel log records of h.
func ShutdownLogger(ctx context.Context, h *logger.Handle) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loggerShutdownTimeout)
	defer cancel()

	return h.Close(ctx)
}
