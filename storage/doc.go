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

// Package storage defines the persistence contracts used by the index.
//
// Two stores back every snapshot: a StructuredStore holding document rows and
// a VectorIndex holding one embedding per document. A Catalog records which
// pair is active. Implementations live in subpackages:
//
//   - badger: VectorIndex and Catalog on BadgerDB
//   - sqlite: StructuredStore on SQLite
//
// # Naming
//
// Table and collection names are interpolated into SQL identifiers and key
// prefixes, so every implementation validates them with ValidateName. The
// snapshot for generation N uses SnapshotName(N) for both stores.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access from
// multiple goroutines.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
// Long scans check the context periodically.
package storage
