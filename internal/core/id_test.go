package core

import (
	"encoding/json"
	"testing"
)

func TestNormalizeID(t *testing.T) {
	cases := map[string]ID{
		"1":      "1",
		" 1 ":    "1",
		"01":     "1",
		"1.0":    "1",
		"2.5":    "2.5",
		"abc":    "abc",
		"":       "",
		"c0ffee": "c0ffee",
		"-007":   "-7",
		"000":    "0",
		"1e3":    "1e3",
		"1.50":   "1.50",
		"1.":     "1.",
		"12345678901234567890": "12345678901234567890",
		"12345678901234567891": "12345678901234567891",
		"550e8400-e29b-41d4-a716-446655440000": "550e8400-e29b-41d4-a716-446655440000",
	}
	for in, want := range cases {
		if got := NormalizeID(in); got != want {
			t.Fatalf("NormalizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeIDKeepsLargeIDsDistinct(t *testing.T) {
	a := NormalizeID("12345678901234567890")
	b := NormalizeID("12345678901234567891")
	if a == b {
		t.Fatalf("distinct ids collapsed to %q", a)
	}
	if NormalizeID("1e3").Equal("1000") {
		t.Fatal("exponent form must not match its integer value")
	}

	var rec struct {
		A ID `json:"a"`
	}
	if err := json.Unmarshal([]byte(`{"a": 98765432109876543210}`), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.A != "98765432109876543210" {
		t.Fatalf("large numeric id = %q", rec.A)
	}
}

func TestIDUnmarshalAcceptsNumbers(t *testing.T) {
	var rec struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 1, "b": "1", "c": null}`), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.A != "1" || rec.B != "1" || rec.C != "" {
		t.Fatalf("unexpected ids: %+v", rec)
	}
	if !rec.A.Equal(rec.B) {
		t.Fatalf("numeric and string ids should be equal")
	}

	b, err := json.Marshal(ID("07"))
	if err != nil || string(b) != `"7"` {
		t.Fatalf("marshal: %s %v", b, err)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := map[ID]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
