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

// Package locks holds the process-wide write lock toggled by operators.
package locks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/carverauto/serviceradar-admin/pkg/logger"
)

var ErrWriteLocked = errors.New("writes are locked")

const defaultLockedReason = "write operations are forbidden"

// State is the write lock flag with its optional operator-provided reason.
// A reason on an unlocked state is stale and ignored by readers.
type State struct {
	Write        bool    `json:"write"`
	ErrorMessage *string `json:"error_message"`
}

func (s State) clone() State {
	if s.ErrorMessage != nil {
		msg := *s.ErrorMessage
		s.ErrorMessage = &msg
	}

	return s
}

// Reason returns the lock reason, or a default message when none is set.
func (s State) Reason() string {
	if s.ErrorMessage != nil && *s.ErrorMessage != "" {
		return *s.ErrorMessage
	}

	return defaultLockedReason
}

// Controller owns the lock state. It starts unlocked and is never persisted.
type Controller struct {
	mu     sync.RWMutex
	state  State
	logger logger.Logger
}

func NewController(log logger.Logger) *Controller {
	return &Controller{logger: log}
}

// Get returns a copy of the current state.
func (c *Controller) Get() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state.clone()
}

// Set replaces the state and returns the one it replaced.
func (c *Controller) Set(write bool, reason *string) State {
	next := State{Write: write, ErrorMessage: reason}.clone()

	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()

	event := c.logger.Info().
		Bool("write", next.Write).
		Bool("previous_write", prev.Write)

	if next.ErrorMessage != nil {
		event = event.Str("reason", *next.ErrorMessage)
	}

	event.Msg("Write lock updated")

	return prev
}

// CheckWrite returns an error wrapping ErrWriteLocked while writes are locked.
func (c *Controller) CheckWrite() error {
	state := c.Get()
	if !state.Write {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrWriteLocked, state.Reason())
}
