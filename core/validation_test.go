package core

import (
	"errors"
	"math"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name: "valid document",
			doc: &Document{
				Attributes:  Attributes{ApplicationNumber: "17123456"},
				Fingerprint: "abc",
			},
			wantErr: nil,
		},
		{
			name: "valid document with empty optional fields",
			doc: &Document{
				Id:          0,
				Attributes:  Attributes{ApplicationNumber: "17123456", Inventors: nil},
				Fingerprint: "abc",
			},
			wantErr: nil,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidDocument,
		},
		{
			name: "missing application number",
			doc: &Document{
				Fingerprint: "abc",
			},
			wantErr: ErrEmptyApplicationNumber,
		},
		{
			name: "missing fingerprint",
			doc: &Document{
				Attributes: Attributes{ApplicationNumber: "17123456"},
			},
			wantErr: ErrEmptyFingerprint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Errorf("ValidateDocument() error = nil, want %v", tt.wantErr)
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("ValidateDocument() error = %v, want wrapped %v", err, ErrInvalidDocument)
			}
		})
	}
}

func TestValidateVector(t *testing.T) {
	tests := []struct {
		name    string
		vector  []float32
		wantErr error
	}{
		{name: "valid", vector: []float32{0.1, 0.2}, wantErr: nil},
		{name: "zero vector is valid", vector: []float32{0, 0}, wantErr: nil},
		{name: "empty", vector: nil, wantErr: ErrEmptyVector},
		{name: "NaN", vector: []float32{float32(math.NaN())}, wantErr: ErrNonFiniteVector},
		{name: "Inf", vector: []float32{1, float32(math.Inf(1))}, wantErr: ErrNonFiniteVector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVector(tt.vector)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateVector() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
