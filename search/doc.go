// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package search answers natural-language queries against the active snapshot.
//
// A query is normalized exactly like document summaries at ingestion time,
// embedded, and matched against the snapshot's vector collection by cosine
// distance. Matching rows are then joined from the snapshot's table and
// returned in retrieval order. Ties in distance are broken by ascending
// document id so results are reproducible.
//
// Queries run under a bounded timeout and hold a snapshot lease for their
// whole duration, so a concurrent rebuild never drops the data being read.
package search
