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

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyVector indicates an embedding with no components.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrNonFiniteVector indicates an embedding containing NaN or Inf.
	ErrNonFiniteVector = errors.New("vector contains non-finite values")
)

// ValidateDocument validates a Document before it is staged.
//
// Validation rules:
//   - ApplicationNumber must not be empty
//   - Fingerprint must be set (call Fingerprinted first)
//
// NOT validated:
//   - optional attributes (empty is a valid value)
//   - QualityScore (0 is valid for a record with no inventors or date)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Attributes.ApplicationNumber == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyApplicationNumber)
	}

	if doc.Fingerprint == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyFingerprint)
	}

	return nil
}

// ValidateVector checks that an embedding is usable for distance computation.
func ValidateVector(vector []float32) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}
	for _, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrNonFiniteVector
		}
	}
	return nil
}
