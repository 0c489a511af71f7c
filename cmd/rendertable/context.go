/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"rendertable/internal/backend"
	"rendertable/internal/config"
	applog "rendertable/internal/log"
	"rendertable/internal/storage"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     config.AppConfig
	secret     string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureConfig loads the configuration once and re-initializes logging from it.
func (c *commandContext) ensureConfig(logOut io.Writer) (config.AppConfig, error) {
	c.configOnce.Do(func() {
		cfg, secret, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		opts := cfg.Logging.Options()
		opts.Console = logOut
		applog.Init(opts)
		c.config = cfg
		c.secret = secret
	})
	return c.config, c.configErr
}

func (c *commandContext) openHistory(ctx context.Context) (*storage.History, error) {
	path, err := c.config.Storage.ResolvedHistoryPath()
	if err != nil {
		return nil, fmt.Errorf("resolve history path: %w", err)
	}
	h, recovered, err := storage.OpenOrRecover(ctx, path)
	if err != nil {
		return nil, err
	}
	if recovered {
		applog.WithComponent("cli").Warn("history database was corrupt and has been recreated", slog.String("path", path))
	}
	return h, nil
}

var errBackendDisabled = errors.New("backend is not enabled (set backend.enabled and backend.dsn, or RTC_PG_ENABLED and RTC_PG_DSN)")

func (c *commandContext) openPublisher(ctx context.Context) (*backend.Publisher, error) {
	if !c.config.Backend.Enabled {
		return nil, errBackendDisabled
	}
	return backend.Open(ctx, backend.Options{
		DSN:      c.config.Backend.DSN,
		Password: c.secret,
		Timeout:  c.config.Backend.Timeout(),
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
