/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	applog "rendertable/internal/log"
)

// errQuickCheck marks a database that opened but failed PRAGMA quick_check.
var errQuickCheck = errors.New("history database failed quick_check")

// sidecars are the SQLite files that belong to a WAL mode database.
var sidecars = []string{"-wal", "-shm"}

// OpenOrRecover opens the history at path. When the file is corrupt (not a
// database, SQLITE_CORRUPT, or a failing PRAGMA quick_check) it is moved to
// "<path>.corrupt-<stamp>" together with its -wal and -shm files and a
// fresh database is created. Other failures such as a busy database or an
// expired context are returned unchanged. The bool reports whether a
// recovery happened.
func OpenOrRecover(ctx context.Context, path string) (*History, bool, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "history_recover").With(slog.String("path", path))
	h, err := Open(ctx, path)
	if err == nil {
		if err = h.quickCheck(ctx); err == nil {
			return h, false, nil
		}
		_ = h.Close()
	}
	if !isCorrupt(err) {
		return nil, false, err
	}

	bak := fmt.Sprintf("%s.corrupt-%s", path, time.Now().Format("20060102-150405"))
	l.Warn("history database corrupt, moving aside", slog.Any("err", err), slog.String("backup", bak))
	if mvErr := moveAside(path, bak); mvErr != nil {
		return nil, false, fmt.Errorf("move corrupt history: %w (open err: %v)", mvErr, err)
	}
	h, err = Open(ctx, path)
	if err != nil {
		return nil, false, fmt.Errorf("recreate history: %w", err)
	}
	return h, true, nil
}

// isCorrupt reports whether err means the database file itself is damaged.
func isCorrupt(err error) bool {
	if errors.Is(err, errQuickCheck) {
		return true
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
			return true
		}
	}
	return false
}

// moveAside renames path to bak and its sidecar files to bak plus the same
// suffix. Missing sidecars are skipped.
func moveAside(path, bak string) error {
	if err := os.Rename(path, bak); err != nil {
		return err
	}
	for _, suffix := range sidecars {
		if err := os.Rename(path+suffix, bak+suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (h *History) quickCheck(ctx context.Context) error {
	var chk string
	if err := h.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(chk), "ok") {
		return fmt.Errorf("%w: %s", errQuickCheck, chk)
	}
	return nil
}
