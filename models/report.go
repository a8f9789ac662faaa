package models

import (
	"context"
	"math"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"gorm.io/gorm"
)

type AgingBucket struct {
	Status       Status `json:"status"`
	Bucket0To2   int    `json:"bucket_0_2"`
	Bucket3To7   int    `json:"bucket_3_7"`
	Bucket8To15  int    `json:"bucket_8_15"`
	Bucket16To30 int    `json:"bucket_16_30"`
	Bucket30Plus int    `json:"bucket_30_plus"`
}

type statusAge struct {
	Status  Status
	AgeDays int
}

// BucketAges folds per-job ages into one aging row per status. Every status
// appears in the result even when it has no jobs.
func BucketAges(rows []statusAge) []AgingBucket {
	byStatus := make(map[Status]*AgingBucket, len(AllStatuses))
	out := make([]AgingBucket, len(AllStatuses))
	for i, status := range AllStatuses {
		out[i] = AgingBucket{Status: status}
		byStatus[status] = &out[i]
	}
	for _, row := range rows {
		bucket, ok := byStatus[row.Status]
		if !ok {
			continue
		}
		switch {
		case row.AgeDays <= 2:
			bucket.Bucket0To2++
		case row.AgeDays <= 7:
			bucket.Bucket3To7++
		case row.AgeDays <= 15:
			bucket.Bucket8To15++
		case row.AgeDays <= 30:
			bucket.Bucket16To30++
		default:
			bucket.Bucket30Plus++
		}
	}
	return out
}

// PendingAgingReport buckets jobs by how long they have sat at their current
// status, measured from the last scan (or creation when never scanned).
func PendingAgingReport(ctx context.Context) ([]AgingBucket, error) {
	db := config.GetDB()
	var rows []statusAge
	err := db.WithContext(ctx).
		Table("item_jobs").
		Select("current_status AS status, DATEDIFF(NOW(), COALESCE(last_scan_at, created_at)) AS age_days").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return BucketAges(rows), nil
}

type TurnaroundStage struct {
	Label string
	From  Status
	To    Status // empty means first of ADDED_TO_STOCK / HANDED_TO_DELIVERY
}

var TurnaroundStages = []TurnaroundStage{
	{Label: "Purchase->Packed", From: StatusPurchased, To: StatusPackedReady},
	{Label: "Packed->Dispatch", From: StatusPackedReady, To: StatusDispatchedToFactory},
	{Label: "Dispatch->FactoryReceive", From: StatusDispatchedToFactory, To: StatusReceivedAtFactory},
	{Label: "FactoryReceive->Return", From: StatusReceivedAtFactory, To: StatusReturnedFromFactory},
	{Label: "Return->ShopReceive", From: StatusReturnedFromFactory, To: StatusReceivedAtShop},
	{Label: "ShopReceive->Stock/Delivery", From: StatusReceivedAtShop},
	{Label: "Delivery->Delivered", From: StatusHandedToDelivery, To: StatusDeliveredToCustomer},
}

type TurnaroundMetric struct {
	Stage       string  `json:"stage"`
	AverageDays float64 `json:"average_days"`
}

// ComputeTurnaround averages per-stage day counts from each job's first
// occurrence of every status.
func ComputeTurnaround(eventsByJob map[int]map[Status]time.Time) []TurnaroundMetric {
	durations := make(map[string][]float64, len(TurnaroundStages))
	for _, timestamps := range eventsByJob {
		for _, stage := range TurnaroundStages {
			start, ok := timestamps[stage.From]
			if !ok {
				continue
			}
			var end time.Time
			if stage.To != "" {
				end, ok = timestamps[stage.To]
				if !ok {
					continue
				}
			} else {
				stock, hasStock := timestamps[StatusAddedToStock]
				handed, hasHanded := timestamps[StatusHandedToDelivery]
				switch {
				case hasStock && hasHanded:
					end = stock
					if handed.Before(stock) {
						end = handed
					}
				case hasStock:
					end = stock
				case hasHanded:
					end = handed
				default:
					continue
				}
			}
			days := math.Floor(end.Sub(start).Hours() / 24)
			durations[stage.Label] = append(durations[stage.Label], days)
		}
	}

	results := make([]TurnaroundMetric, 0, len(TurnaroundStages))
	for _, stage := range TurnaroundStages {
		samples := durations[stage.Label]
		average := 0.0
		if len(samples) > 0 {
			total := 0.0
			for _, sample := range samples {
				total += sample
			}
			average = math.Round(total/float64(len(samples))*100) / 100
		}
		results = append(results, TurnaroundMetric{Stage: stage.Label, AverageDays: average})
	}
	return results
}

func TurnaroundReport(ctx context.Context, windowDays int) ([]TurnaroundMetric, error) {
	db := config.GetDB()
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	var rows []struct {
		JobID     int
		ToStatus  Status
		Timestamp time.Time
	}
	err := db.WithContext(ctx).
		Table("status_events").
		Select("job_id, to_status, MIN(timestamp) AS timestamp").
		Where("timestamp >= ?", cutoff).
		Group("job_id, to_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	eventsByJob := make(map[int]map[Status]time.Time)
	for _, row := range rows {
		if eventsByJob[row.JobID] == nil {
			eventsByJob[row.JobID] = make(map[Status]time.Time)
		}
		eventsByJob[row.JobID][row.ToStatus] = row.Timestamp
	}
	return ComputeTurnaround(eventsByJob), nil
}

type BatchDelay struct {
	BatchCode          string     `json:"batch_code"`
	DispatchDate       *time.Time `json:"dispatch_date"`
	ExpectedReturnDate *time.Time `json:"expected_return_date"`
	DelayDays          int        `json:"delay_days"`
}

// DelayDays counts whole days a dispatched batch is past its expected return.
func DelayDays(now time.Time, batch *Batch) int {
	if batch.ExpectedReturnDate == nil || batch.DispatchDate == nil {
		return 0
	}
	if !now.After(*batch.ExpectedReturnDate) {
		return 0
	}
	return int(now.Sub(*batch.ExpectedReturnDate).Hours() / 24)
}

func BatchDelayReport(ctx context.Context) ([]BatchDelay, error) {
	db := config.GetDB()
	var batches []Batch
	if err := db.WithContext(ctx).Order("created_at DESC").Find(&batches).Error; err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	delays := make([]BatchDelay, 0, len(batches))
	for i := range batches {
		delays = append(delays, BatchDelay{
			BatchCode:          batches[i].BatchCode,
			DispatchDate:       batches[i].DispatchDate,
			ExpectedReturnDate: batches[i].ExpectedReturnDate,
			DelayDays:          DelayDays(now, &batches[i]),
		})
	}
	return delays, nil
}

// Statuses where the item has not yet come back shop side.
var notReturnedStatuses = []Status{
	StatusPurchased, StatusPackedReady, StatusDispatchedToFactory,
	StatusReceivedAtFactory, StatusReturnedFromFactory, StatusOnHold,
}

// Shop-side statuses where the customer has not collected the item yet.
var uncollectedStatuses = []Status{
	StatusReceivedAtShop, StatusAddedToStock, StatusHandedToDelivery,
}

type RepairTargetReport struct {
	Overdue     []ItemJob `json:"overdue"`
	Approaching []ItemJob `json:"approaching"`
	Uncollected []ItemJob `json:"uncollected"`
}

const repairTargetLimit = 200

func RepairTargetsReport(ctx context.Context, windowDays int) (*RepairTargetReport, error) {
	db := config.GetDB()
	now := time.Now().UTC()
	windowEnd := now.AddDate(0, 0, windowDays)

	base := func() *gorm.DB {
		return db.WithContext(ctx).Model(&ItemJob{}).
			Where("target_return_date IS NOT NULL").
			Where("current_status <> ?", StatusCancelled).
			Order("target_return_date ASC").
			Limit(repairTargetLimit)
	}

	report := RepairTargetReport{}
	err := base().
		Where("target_return_date < ?", now).
		Where("current_status IN ?", notReturnedStatuses).
		Find(&report.Overdue).Error
	if err != nil {
		return nil, err
	}
	err = base().
		Where("target_return_date >= ? AND target_return_date <= ?", now, windowEnd).
		Where("current_status IN ?", notReturnedStatuses).
		Find(&report.Approaching).Error
	if err != nil {
		return nil, err
	}
	err = base().
		Where("target_return_date < ?", now).
		Where("current_status IN ?", uncollectedStatuses).
		Find(&report.Uncollected).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

type UserActivity struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Scans    int64  `json:"scans"`
}

func UserActivityReport(ctx context.Context) ([]UserActivity, error) {
	db := config.GetDB()
	var rows []UserActivity
	err := db.WithContext(ctx).
		Table("status_events").
		Select("status_events.scanned_by_user_id AS user_id, users.username, COUNT(status_events.id) AS scans").
		Joins("JOIN users ON users.id = status_events.scanned_by_user_id").
		Group("status_events.scanned_by_user_id, users.username").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Scans > rows[j].Scans })
	return rows, nil
}

// Export fetchers keep memory bounded by paging in fixed chunks.
const exportChunkSize = 1000

func StreamJobsForExport(ctx context.Context, fn func(jobs []ItemJob) error) error {
	db := config.GetDB()
	offset := 0
	for {
		var jobs []ItemJob
		err := db.WithContext(ctx).
			Preload("Factory").
			Order("id ASC").
			Offset(offset).
			Limit(exportChunkSize).
			Find(&jobs).Error
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}
		if err := fn(jobs); err != nil {
			return err
		}
		if len(jobs) < exportChunkSize {
			return nil
		}
		offset += exportChunkSize
	}
}

func StreamBatchesForExport(ctx context.Context, fn func(batches []Batch) error) error {
	db := config.GetDB()
	offset := 0
	for {
		var batches []Batch
		err := db.WithContext(ctx).
			Order("id ASC").
			Offset(offset).
			Limit(exportChunkSize).
			Find(&batches).Error
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			return nil
		}
		if err := fn(batches); err != nil {
			return err
		}
		if len(batches) < exportChunkSize {
			return nil
		}
		offset += exportChunkSize
	}
}

func StreamIncidentsForExport(ctx context.Context, fn func(incidents []Incident) error) error {
	db := config.GetDB()
	offset := 0
	for {
		var incidents []Incident
		err := db.WithContext(ctx).
			Order("id ASC").
			Offset(offset).
			Limit(exportChunkSize).
			Find(&incidents).Error
		if err != nil {
			return err
		}
		if len(incidents) == 0 {
			return nil
		}
		if err := fn(incidents); err != nil {
			return err
		}
		if len(incidents) < exportChunkSize {
			return nil
		}
		offset += exportChunkSize
	}
}
