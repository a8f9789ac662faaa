package main

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"github.com/shopspring/decimal"
)

func TestFormatNullDecimal(t *testing.T) {
	if got := formatNullDecimal(decimal.NullDecimal{}); got != "" {
		t.Fatalf("null decimal: got %q, want empty", got)
	}
	d := decimal.NewNullDecimal(decimal.RequireFromString("12.5"))
	if got := formatNullDecimal(d); got != "12.5" {
		t.Fatalf("got %q, want 12.5", got)
	}
}

func TestJobExportRow(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	job := models.ItemJob{
		JobCode:           "DJ-2026-000007",
		CustomerName:      "Daw Mya",
		ItemDescription:   "Gold ring",
		PurchaseValue:     decimal.NewNullDecimal(decimal.RequireFromString("350000")),
		VoucherNo:         "V-100",
		CurrentStatus:     models.StatusPurchased,
		CurrentHolderRole: models.RolePurchase,
		CreatedAt:         created,
	}
	row := jobExportRow(&job)
	if len(row) != len(jobExportHeader) {
		t.Fatalf("row has %d cells, header has %d", len(row), len(jobExportHeader))
	}
	if row[0] != "DJ-2026-000007" {
		t.Fatalf("job_code cell: got %q", row[0])
	}
	if row[5] != "350000" {
		t.Fatalf("purchase_value cell: got %q", row[5])
	}
	// Unset optional fields export as empty strings, not zero values.
	if row[4] != "" || row[12] != "" || row[13] != "" {
		t.Fatalf("optional cells not empty: %q %q %q", row[4], row[12], row[13])
	}
	if row[14] != "2026-03-01T10:00:00Z" {
		t.Fatalf("created_at cell: got %q", row[14])
	}
}

func TestBatchExportRow(t *testing.T) {
	factoryID := 3
	dispatch := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	batch := models.Batch{
		BatchCode:    "BATCH-2026-04",
		Status:       models.BatchStatusDispatched,
		FactoryID:    &factoryID,
		ItemCount:    12,
		DispatchDate: &dispatch,
		CreatedAt:    dispatch,
	}
	row := batchExportRow(&batch)
	if len(row) != len(batchExportHeader) {
		t.Fatalf("row has %d cells, header has %d", len(row), len(batchExportHeader))
	}
	if row[2] != "3" || row[3] != "12" {
		t.Fatalf("factory_id/item_count cells: got %q %q", row[2], row[3])
	}
	if row[5] != "" {
		t.Fatalf("expected_return_date cell: got %q, want empty", row[5])
	}
}
