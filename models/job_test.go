package models

import (
	"testing"
)

func TestFormatJobCode(t *testing.T) {
	if got := FormatJobCode(2026, 41); got != "DJ-2026-000041" {
		t.Fatalf("got %s", got)
	}
	if got := FormatJobCode(2026, 1234567); got != "DJ-2026-1234567" {
		t.Fatalf("sequence overflow should widen, got %s", got)
	}
}

func TestParseJobCodeSequence(t *testing.T) {
	cases := map[string]int{
		"DJ-2026-000041": 41,
		"DJ-2025-999999": 999999,
		"DJ-2026-abc":    0,
		"garbage":        0,
		"":               0,
	}
	for code, want := range cases {
		if got := ParseJobCodeSequence(code); got != want {
			t.Fatalf("ParseJobCodeSequence(%q) = %d, want %d", code, got, want)
		}
	}
}

func TestPhotoListRoundTrip(t *testing.T) {
	photos := PhotoList{
		{Key: "jobs/a.jpg", URL: "https://cdn/a.jpg", ThumbnailURL: "https://cdn/a_thumb.jpg"},
	}
	value, err := photos.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	var decoded PhotoList
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(decoded) != 1 || decoded[0] != photos[0] {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestRoleListContains(t *testing.T) {
	roles := RoleList{RoleAdmin, RoleQCStock}
	if !roles.Contains(RoleQCStock) {
		t.Fatal("expected QC_Stock membership")
	}
	if roles.Contains(RoleDelivery) {
		t.Fatal("unexpected Delivery membership")
	}
}

func TestJobCodeSequenceOrderingPastWidening(t *testing.T) {
	// DJ-2026-1000000 sorts below DJ-2026-999999 as a string, which is why
	// the max-sequence query orders on the numeric suffix.
	wide := FormatJobCode(2026, 1000000)
	narrow := FormatJobCode(2026, 999999)
	if !(wide < narrow) {
		t.Fatalf("expected %q < %q as strings", wide, narrow)
	}
	if ParseJobCodeSequence(wide) <= ParseJobCodeSequence(narrow) {
		t.Fatal("numeric comparison must rank the widened code higher")
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct{ in, max, want int }{
		{0, 200, 50},
		{-3, 200, 50},
		{7, 200, 7},
		{200, 200, 200},
		{250, 200, 200},
		{501, 500, 500},
	}
	for _, tc := range cases {
		if got := clampLimit(tc.in, tc.max); got != tc.want {
			t.Fatalf("clampLimit(%d, %d) = %d, want %d", tc.in, tc.max, got, tc.want)
		}
	}
}
