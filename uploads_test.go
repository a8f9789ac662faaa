package main

import "testing"

func TestThumbnailObjectKey(t *testing.T) {
	got := thumbnailObjectKey("jobs/DJ-2026-000007/abc.jpg")
	want := "jobs/DJ-2026-000007/thumbnails/abc.jpg"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example , ,https://b.example")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("got %v", got)
	}
}
