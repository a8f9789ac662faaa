package workflow

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func nullDec(s string) decimal.NullDecimal {
	d, _ := decimal.NewFromString(s)
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func baseJob() *models.ItemJob {
	return &models.ItemJob{
		ID:              7,
		JobCode:         "DJ-2026-000007",
		CustomerName:    "Daw Mya",
		CustomerPhone:   "+959790000001",
		ItemDescription: "Gold ring with diamond",
		VoucherNo:       "V-1001",
		PurchaseValue:   nullDec("350000"),
	}
}

func TestBuildJobChangesDiffsOnlyChangedFields(t *testing.T) {
	job := baseJob()
	input := &models.UpdateJobInput{
		Reason:        "typo in name",
		CustomerName:  strPtr("Daw Mya Mya"),
		CustomerPhone: strPtr("+959790000001"), // unchanged
	}

	changes, updates, err := BuildJobChanges(job, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 1 || len(updates) != 1 {
		t.Fatalf("expected exactly one change, got changes=%v updates=%v", changes, updates)
	}
	change, ok := changes["customer_name"]
	if !ok {
		t.Fatal("customer_name change missing")
	}
	if change.From != "Daw Mya" || change.To != "Daw Mya Mya" {
		t.Fatalf("unexpected change payload: %+v", change)
	}
}

func TestBuildJobChangesNoOp(t *testing.T) {
	job := baseJob()
	same := job.PurchaseValue
	input := &models.UpdateJobInput{
		Reason:        "no-op replay",
		CustomerName:  strPtr(job.CustomerName),
		PurchaseValue: &same,
	}

	changes, updates, err := BuildJobChanges(job, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 0 || len(updates) != 0 {
		t.Fatalf("replay with identical values must produce no changes, got %v", changes)
	}
}

func TestBuildJobChangesDecimalEqualityIgnoresScale(t *testing.T) {
	job := baseJob()
	rescaled := nullDec("350000.00")
	input := &models.UpdateJobInput{
		Reason:        "same value different scale",
		PurchaseValue: &rescaled,
	}

	changes, _, err := BuildJobChanges(job, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("350000 and 350000.00 must compare equal, got %v", changes)
	}
}

func TestBuildJobChangesVoucherCannotBeBlanked(t *testing.T) {
	job := baseJob()
	input := &models.UpdateJobInput{
		Reason:    "remove voucher",
		VoucherNo: strPtr("   "),
	}

	_, _, err := BuildJobChanges(job, input)
	if !errors.Is(err, ErrVoucherRequired) {
		t.Fatalf("got %v, want ErrVoucherRequired", err)
	}
}

func TestBuildJobChangesTargetReturnDate(t *testing.T) {
	job := baseJob()
	target := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	input := &models.UpdateJobInput{
		Reason:           "factory confirmed date",
		TargetReturnDate: &target,
	}

	changes, updates, err := BuildJobChanges(job, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := changes["target_return_date"]; !ok {
		t.Fatalf("expected target_return_date change, got %v", changes)
	}
	if changes["target_return_date"].From != nil {
		t.Fatalf("from should be nil, got %v", changes["target_return_date"].From)
	}
	if updates["target_return_date"] != target {
		t.Fatalf("update value mismatch: %v", updates["target_return_date"])
	}
}

func TestBuildJobChangesPhotos(t *testing.T) {
	job := baseJob()
	job.Photos = models.PhotoList{{Key: "a.jpg", URL: "u/a.jpg", ThumbnailURL: "t/a.jpg"}}
	next := models.PhotoList{
		{Key: "a.jpg", URL: "u/a.jpg", ThumbnailURL: "t/a.jpg"},
		{Key: "b.jpg", URL: "u/b.jpg", ThumbnailURL: "t/b.jpg"},
	}
	input := &models.UpdateJobInput{Reason: "added second photo", Photos: &next}

	changes, _, err := BuildJobChanges(job, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := changes["photos"]; !ok {
		t.Fatalf("expected photos change, got %v", changes)
	}

	// Identical list is not a change.
	same := models.PhotoList{{Key: "a.jpg", URL: "u/a.jpg", ThumbnailURL: "t/a.jpg"}}
	changes, _, err = BuildJobChanges(job, &models.UpdateJobInput{Reason: "replay", Photos: &same})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("identical photo list must not diff, got %v", changes)
	}
}
