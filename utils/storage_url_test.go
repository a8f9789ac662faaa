package utils

import "testing"

func TestExtractObjectKeyFromURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"jobs/DJ-2026-000007/a.jpg", "jobs/DJ-2026-000007/a.jpg"},
		{"jobs/../secrets/a.jpg", ""},
		{"gs://bucket/jobs/a.jpg", "jobs/a.jpg"},
		{"https://storage.googleapis.com/bucket/jobs/a.jpg", "jobs/a.jpg"},
		{"https://storage.cloud.google.com/bucket/jobs/a.jpg", "jobs/a.jpg"},
		{"https://bucket.storage.googleapis.com/jobs/a.jpg", "jobs/a.jpg"},
		{"https://cdn.example/download?objectKey=jobs%2Fa.jpg", "jobs/a.jpg"},
		{"", ""},
		{"https://unrelated.example/jobs/a.jpg", ""},
	}
	for _, tc := range cases {
		if got := ExtractObjectKeyFromURL(tc.in); got != tc.want {
			t.Fatalf("ExtractObjectKeyFromURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildObjectAccessURL(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://cdn.example")
	if got := BuildObjectAccessURL("jobs/a.jpg"); got != "https://cdn.example/jobs/a.jpg" {
		t.Fatalf("got %q", got)
	}

	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://cdn.example/get?objectKey={objectKey}")
	if got := BuildObjectAccessURL("jobs/a.jpg"); got != "https://cdn.example/get?objectKey=jobs%2Fa.jpg" {
		t.Fatalf("template form: got %q", got)
	}
}
