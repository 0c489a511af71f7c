/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package catalog

import (
	"path/filepath"
	"strings"
)

// donePrefix marks transcripts that were already processed once.
const donePrefix = "DONE - "

// SceneNameFromPath derives the scene name from a transcript file name of
// the form "<n>) <scene>.txt". Names without ")" yield the base name.
func SceneNameFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.TrimPrefix(base, donePrefix)
	if _, after, ok := strings.Cut(base, ")"); ok {
		if s := strings.TrimSpace(after); s != "" {
			return s
		}
	}
	return strings.TrimSpace(base)
}

// OutputPath returns the render table path next to the transcript, with the
// "DONE - " marker removed and ext (including the dot) appended.
func OutputPath(transcriptPath, ext string) string {
	dir := filepath.Dir(transcriptPath)
	base := strings.TrimSuffix(filepath.Base(transcriptPath), filepath.Ext(transcriptPath))
	base = strings.Replace(base, donePrefix, "", 1)
	return filepath.Join(dir, base+" (Render Table)"+ext)
}
