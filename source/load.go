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

package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"

	"github.com/poiesic/patentindex/core"
)

// ErrUnrecognizedFormat indicates the input is neither an export envelope nor a record array.
var ErrUnrecognizedFormat = errors.New("unrecognized source format")

type envelope struct {
	PatentData []sonic.NoCopyRawMessage `json:"patentdata"`
}

// Load reads and decodes the source file at path.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads all records from r.
func Decode(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnrecognizedFormat)
	}

	var raw []sonic.NoCopyRawMessage
	switch trimmed[0] {
	case '[':
		if err := sonic.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("decoding record array: %w", err)
		}
	case '{':
		var env envelope
		if err := sonic.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decoding export envelope: %w", err)
		}
		raw = env.PatentData
	default:
		return nil, fmt.Errorf("%w: leading byte %q", ErrUnrecognizedFormat, trimmed[0])
	}
	return decodeRecords(raw), nil
}

// decodeRecords decodes each record on its own. A record that does not fit
// the schema is kept in position and fails Normalize with core.ErrMalformedRecord.
func decodeRecords(raw []sonic.NoCopyRawMessage) []Record {
	records := make([]Record, len(raw))
	for i, msg := range raw {
		if err := sonic.Unmarshal(msg, &records[i]); err != nil {
			records[i] = Record{decodeErr: fmt.Errorf("%w: record %d: %v", core.ErrMalformedRecord, i, err)}
		}
	}
	return records
}
