package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/tracking_backend/models"
)

func TestNormalizePhotos(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://cdn.example")

	photos := normalizePhotos(models.PhotoList{
		{URL: "https://storage.googleapis.com/bucket/jobs/DJ-2026-000007/a.jpg"},
		{Key: "jobs/DJ-2026-000007/b.jpg"},
		{Key: "jobs/c.jpg", URL: "https://cdn.example/jobs/c.jpg", ThumbnailURL: "https://cdn.example/jobs/thumbnails/c.jpg"},
	})

	if photos[0].Key != "jobs/DJ-2026-000007/a.jpg" {
		t.Fatalf("key not derived from URL, got %q", photos[0].Key)
	}
	if photos[1].URL != "https://cdn.example/jobs/DJ-2026-000007/b.jpg" {
		t.Fatalf("URL not derived from key, got %q", photos[1].URL)
	}
	if photos[2] != (models.PhotoRef{Key: "jobs/c.jpg", URL: "https://cdn.example/jobs/c.jpg", ThumbnailURL: "https://cdn.example/jobs/thumbnails/c.jpg"}) {
		t.Fatalf("complete photo should pass through, got %+v", photos[2])
	}
}

func TestNormalizePhotosNil(t *testing.T) {
	photos := normalizePhotos(nil)
	if photos == nil || len(photos) != 0 {
		t.Fatalf("nil input should normalize to an empty list, got %#v", photos)
	}
}
