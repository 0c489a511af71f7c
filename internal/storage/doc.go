/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage keeps the local history of render table runs.
// Every run, clean or rejected, is stored in an embedded SQLite database
// (pure-Go driver, CGO-free) at the per-user data path with its digest,
// counts, items and diagnostics.
// The history is disposable: a corrupt database is moved aside and recreated.
package storage
