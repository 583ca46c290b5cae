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

package storage

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/poiesic/patentindex/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, n, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return 0, fmt.Errorf("%w: %d trailing bytes after id", ErrSerializationFailed, len(data)-n)
	}
	return id, nil
}

// MarshalVectorEntry serializes a VectorEntry to bytes.
func MarshalVectorEntry(entry *core.VectorEntry) []byte {
	buf := make([]byte, core.VectorEntryMUS.Size(*entry))
	core.VectorEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalVectorEntry deserializes a VectorEntry from bytes.
// Empty metadata decodes as nil.
func UnmarshalVectorEntry(data []byte) (*core.VectorEntry, error) {
	entry, _, err := core.VectorEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if len(entry.Metadata) == 0 {
		entry.Metadata = nil
	}
	return &entry, nil
}

// MarshalSnapshotInfo serializes a SnapshotInfo to bytes.
// BuiltAt keeps microsecond precision.
func MarshalSnapshotInfo(info *core.SnapshotInfo) []byte {
	buf := make([]byte, core.SnapshotInfoMUS.Size(*info))
	core.SnapshotInfoMUS.Marshal(*info, buf)
	return buf
}

// UnmarshalSnapshotInfo deserializes a SnapshotInfo from bytes.
func UnmarshalSnapshotInfo(data []byte) (*core.SnapshotInfo, error) {
	info, _, err := core.SnapshotInfoMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	info.BuiltAt = info.BuiltAt.UTC()
	return &info, nil
}

// MarshalInventors serializes an inventor list for storage as a single column.
func MarshalInventors(inventors []string) (string, error) {
	if inventors == nil {
		inventors = []string{}
	}
	out, err := sonic.MarshalString(inventors)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return out, nil
}

// UnmarshalInventors deserializes a column written by MarshalInventors.
func UnmarshalInventors(data string) ([]string, error) {
	inventors := []string{}
	if data == "" {
		return inventors, nil
	}
	if err := sonic.UnmarshalString(data, &inventors); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return inventors, nil
}
