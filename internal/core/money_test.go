package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"12", 1200, false},
		{"0.01", 1, false},
		{"12.344", 1234, false}, // rounds down
		{"12.345", 1235, false}, // half rounds up
		{"12.346", 1235, false}, // rounds up
		{"12.3", 1230, false},
		{".5", 50, false},
		{"", 0, true},
		{"0", 0, true},
		{"0.00", 0, true},
		{"-5", 0, true},
		{"+5", 0, true},
		{"abc", 0, true},
		{"1.2.3", 0, true},
		{"12e3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDecimalToCents(%q) expected error, got %d", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDecimalToCents(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 100}).Validate(); err != nil {
		t.Errorf("positive amount should validate: %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err != ErrInvalidAmount {
		t.Errorf("zero amount should fail with ErrInvalidAmount, got %v", err)
	}
	if err := (Money{Cents: -1}).Validate(); err != ErrInvalidAmount {
		t.Errorf("negative amount should fail with ErrInvalidAmount, got %v", err)
	}
}

func TestCoerceCents(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int64
	}{
		{"float", 4.5, 450},
		{"float fraction", 0.07, 7},
		{"int", 900, 90000},
		{"int64", int64(12), 1200},
		{"numeric string", "450", 45000},
		{"decimal string", "4.50", 450},
		{"json number", json.Number("12.5"), 1250},
		{"garbage string", "twelve", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceCents(tt.input); got != tt.want {
				t.Errorf("CoerceCents(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMoneyJSONRoundtrip(t *testing.T) {
	data, err := json.Marshal(Money{Cents: 45000})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "45000" {
		t.Errorf("Money should encode as plain cents, got %s", data)
	}
	var m Money
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Cents != 45000 {
		t.Errorf("roundtrip changed value: %d", m.Cents)
	}
}
