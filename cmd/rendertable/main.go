/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command rendertable turns shot transcripts into render tables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"rendertable/internal/crash"
	"rendertable/internal/diag"
	applog "rendertable/internal/log"
)

func main() {
	applog.Init(applog.FromEnv())
	info := &crash.Info{Command: strings.Join(os.Args[1:], " ")}
	code := func() int {
		defer crash.Recover(info)
		return run(os.Args[1:], os.Stderr)
	}()
	_ = applog.Close()
	os.Exit(code)
}

// run executes the root command and maps its error to an exit code.
func run(args []string, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	var runErr *diag.RunError
	switch {
	case errors.As(err, &runErr):
		fmt.Fprintln(stderr, runErr.Text())
	case errors.Is(err, context.Canceled):
	default:
		fmt.Fprintln(stderr, err)
	}
	return 1
}
