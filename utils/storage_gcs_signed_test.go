package utils

import (
	"strings"
	"testing"
)

func TestBuildUploadObjectKey(t *testing.T) {
	key := BuildUploadObjectKey("jobs", "DJ-2026-000007", "photo.JPG", "image/jpeg")
	if !strings.HasPrefix(key, "jobs/DJ-2026-000007/") {
		t.Fatalf("key should group by job, got %q", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("extension should come from the file name, got %q", key)
	}

	key = BuildUploadObjectKey("incidents", "", "photo", "image/png")
	if !strings.HasPrefix(key, "incidents/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("extension should fall back to the MIME type, got %q", key)
	}

	key = BuildUploadObjectKey("../etc", "", "a.jpg", "image/jpeg")
	if !strings.HasPrefix(key, "etc/") {
		t.Fatalf("entity segment should be sanitized, got %q", key)
	}

	key = BuildUploadObjectKey("", "", "a.jpg", "image/jpeg")
	if !strings.HasPrefix(key, "jobs/") {
		t.Fatalf("entity should default to jobs, got %q", key)
	}
}

func TestSanitizeJobCodeSegment(t *testing.T) {
	cases := []struct{ in, want string }{
		{"DJ-2026-000007", "DJ-2026-000007"},
		{" dj-2026-000007 ", "-2026-000007"},
		{"../../etc/passwd", "--"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := sanitizeJobCodeSegment(tc.in); got != tc.want {
			t.Fatalf("sanitizeJobCodeSegment(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtensionFromMimeType(t *testing.T) {
	if got := extensionFromMimeType("image/jpeg"); got != ".jpg" {
		t.Fatalf("jpeg: got %q", got)
	}
	if got := extensionFromMimeType("application/pdf"); got != "" {
		t.Fatalf("pdf should be unsupported, got %q", got)
	}
}
