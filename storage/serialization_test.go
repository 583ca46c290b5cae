package storage

import (
	"testing"
	"time"

	"github.com/poiesic/patentindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("application 17123456 filed 2024-01-01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"trailing bytes", append(MarshalID(7), 0x01)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalID(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshalUnmarshalVectorEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry *core.VectorEntry
	}{
		{
			name:  "vector only",
			entry: &core.VectorEntry{Id: 1, Vector: []float32{0.25, -1, 3.5}},
		},
		{
			name: "with metadata",
			entry: &core.VectorEntry{
				Id:       core.IDFromContent("abc123"),
				Vector:   []float32{1, 0, 0, 0},
				Metadata: map[string]string{"application_number": "17123456", "fingerprint": "abc123"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := UnmarshalVectorEntry(MarshalVectorEntry(tt.entry))
			require.NoError(t, err)
			assert.Equal(t, tt.entry, decoded)
		})
	}
}

func TestUnmarshalVectorEntry_Truncated(t *testing.T) {
	data := MarshalVectorEntry(&core.VectorEntry{Id: 9, Vector: []float32{1, 2, 3}})

	_, err := UnmarshalVectorEntry(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalSnapshotInfo(t *testing.T) {
	built := time.Date(2025, 3, 14, 15, 9, 26, 535897000, time.UTC)
	info := &core.SnapshotInfo{
		Generation: 12,
		Table:      SnapshotName(12),
		Collection: SnapshotName(12),
		Documents:  3,
		RunID:      "6f1c0a3e-2b9d-4c55-9d1e-0e5b7f3a9c21",
		BuiltAt:    built,
	}

	decoded, err := UnmarshalSnapshotInfo(MarshalSnapshotInfo(info))
	require.NoError(t, err)
	assert.Equal(t, info, decoded)
	assert.Equal(t, time.UTC, decoded.BuiltAt.Location())

	_, err = UnmarshalSnapshotInfo(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
