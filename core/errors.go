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

package core

import "errors"

// Record-level errors. These are recovered inside a build and only surface
// as counts in a BuildReport.
var (
	// ErrMalformedRecord indicates a source record is missing its application
	// number or has fields of the wrong type.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrDuplicateDocument indicates a document whose fingerprint was already seen in the batch.
	ErrDuplicateDocument = errors.New("duplicate document")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyApplicationNumber indicates the application number attribute is empty.
	ErrEmptyApplicationNumber = errors.New("application number cannot be empty")

	// ErrEmptyFingerprint indicates the fingerprint has not been computed.
	ErrEmptyFingerprint = errors.New("fingerprint cannot be empty")
)

// Build-level errors. Any of these aborts the build and leaves the active
// snapshot untouched.
var (
	// ErrEmbeddingBatch indicates the embedder failed during a build.
	ErrEmbeddingBatch = errors.New("embedding batch failed")

	// ErrStoreWrite indicates staging a new snapshot failed.
	ErrStoreWrite = errors.New("store write failed")

	// ErrBuildInProgress indicates another build currently holds the writer slot.
	ErrBuildInProgress = errors.New("build already in progress")
)

// Query-level errors.
var (
	// ErrEmbedding indicates the query text could not be embedded.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndexUnavailable indicates no snapshot has been published yet.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrEmptyQuery indicates the query text is empty after normalization.
	ErrEmptyQuery = errors.New("query cannot be empty")
)
