package models

import (
	"testing"
	"time"
)

func TestBucketAges(t *testing.T) {
	rows := []statusAge{
		{Status: StatusPurchased, AgeDays: 0},
		{Status: StatusPurchased, AgeDays: 2},
		{Status: StatusPurchased, AgeDays: 5},
		{Status: StatusPurchased, AgeDays: 12},
		{Status: StatusPurchased, AgeDays: 30},
		{Status: StatusPurchased, AgeDays: 31},
		{Status: StatusOnHold, AgeDays: 100},
	}
	buckets := BucketAges(rows)
	if len(buckets) != len(AllStatuses) {
		t.Fatalf("expected a row per status, got %d", len(buckets))
	}

	byStatus := map[Status]AgingBucket{}
	for _, bucket := range buckets {
		byStatus[bucket.Status] = bucket
	}
	purchased := byStatus[StatusPurchased]
	if purchased.Bucket0To2 != 2 || purchased.Bucket3To7 != 1 ||
		purchased.Bucket8To15 != 1 || purchased.Bucket16To30 != 1 ||
		purchased.Bucket30Plus != 1 {
		t.Fatalf("wrong PURCHASED buckets: %+v", purchased)
	}
	if byStatus[StatusOnHold].Bucket30Plus != 1 {
		t.Fatalf("wrong ON_HOLD buckets: %+v", byStatus[StatusOnHold])
	}
	if byStatus[StatusCancelled] != (AgingBucket{Status: StatusCancelled}) {
		t.Fatalf("statuses with no jobs must be all-zero: %+v", byStatus[StatusCancelled])
	}
}

func TestComputeTurnaround(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
	}
	events := map[int]map[Status]time.Time{
		1: {
			StatusPurchased:           day(1),
			StatusPackedReady:         day(3),
			StatusDispatchedToFactory: day(4),
			StatusReceivedAtShop:      day(10),
			StatusAddedToStock:        day(12),
		},
		2: {
			StatusPurchased:        day(1),
			StatusPackedReady:      day(5),
			StatusReceivedAtShop:   day(8),
			StatusHandedToDelivery: day(9),
		},
	}

	metrics := ComputeTurnaround(events)
	byStage := map[string]float64{}
	for _, metric := range metrics {
		byStage[metric.Stage] = metric.AverageDays
	}

	// Job 1: 2 days, Job 2: 4 days.
	if byStage["Purchase->Packed"] != 3 {
		t.Fatalf("Purchase->Packed = %v, want 3", byStage["Purchase->Packed"])
	}
	// Only job 1 has both endpoints.
	if byStage["Packed->Dispatch"] != 1 {
		t.Fatalf("Packed->Dispatch = %v, want 1", byStage["Packed->Dispatch"])
	}
	// Shop receive to the earlier of stock/delivery: job 1 two days, job 2 one day.
	if byStage["ShopReceive->Stock/Delivery"] != 1.5 {
		t.Fatalf("ShopReceive->Stock/Delivery = %v, want 1.5", byStage["ShopReceive->Stock/Delivery"])
	}
	// No samples at all averages to zero.
	if byStage["Delivery->Delivered"] != 0 {
		t.Fatalf("Delivery->Delivered = %v, want 0", byStage["Delivery->Delivered"])
	}
}

func TestDelayDays(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	dispatch := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	expected := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	batch := &Batch{DispatchDate: &dispatch, ExpectedReturnDate: &expected}
	if got := DelayDays(now, batch); got != 12 {
		t.Fatalf("DelayDays = %d, want 12", got)
	}

	future := now.AddDate(0, 0, 5)
	batch.ExpectedReturnDate = &future
	if got := DelayDays(now, batch); got != 0 {
		t.Fatalf("not yet due should be 0, got %d", got)
	}

	if got := DelayDays(now, &Batch{ExpectedReturnDate: &expected}); got != 0 {
		t.Fatalf("never dispatched should be 0, got %d", got)
	}
}
