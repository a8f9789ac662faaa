package main

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

func pendingAgingHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		buckets, err := models.PendingAgingReport(c.Request.Context())
		if err != nil {
			config.LogError(logger, "reports.go", "pendingAgingHandler", "PendingAgingReport", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, buckets)
	}
}

func turnaroundHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		windowDays := parseIntQuery(c, "window_days", 90)
		if windowDays <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window_days"})
			return
		}
		metrics, err := models.TurnaroundReport(c.Request.Context(), windowDays)
		if err != nil {
			config.LogError(logger, "reports.go", "turnaroundHandler", "TurnaroundReport", windowDays, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, metrics)
	}
}

func batchDelaysHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		delays, err := models.BatchDelayReport(c.Request.Context())
		if err != nil {
			config.LogError(logger, "reports.go", "batchDelaysHandler", "BatchDelayReport", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, delays)
	}
}

func repairTargetsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		windowDays := parseIntQuery(c, "window_days", 3)
		if windowDays <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window_days"})
			return
		}
		report, err := models.RepairTargetsReport(c.Request.Context(), windowDays)
		if err != nil {
			config.LogError(logger, "reports.go", "repairTargetsHandler", "RepairTargetsReport", windowDays, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func userActivityHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		activity, err := models.UserActivityReport(c.Request.Context())
		if err != nil {
			config.LogError(logger, "reports.go", "userActivityHandler", "UserActivityReport", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, activity)
	}
}

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

var jobExportHeader = []string{
	"job_code", "customer_name", "customer_phone", "item_description",
	"approximate_weight", "purchase_value", "diamond_cent", "voucher_no",
	"item_source", "repair_type", "current_status", "current_holder_role",
	"target_return_date", "last_scan_at", "created_at",
}

func jobExportRow(job *models.ItemJob) []string {
	return []string{
		job.JobCode, job.CustomerName, job.CustomerPhone, job.ItemDescription,
		formatNullDecimal(job.ApproximateWeight), formatNullDecimal(job.PurchaseValue),
		formatNullDecimal(job.DiamondCent), job.VoucherNo,
		string(job.ItemSource), string(job.RepairType),
		string(job.CurrentStatus), string(job.CurrentHolderRole),
		formatTimePtr(job.TargetReturnDate), formatTimePtr(job.LastScanAt),
		job.CreatedAt.Format(time.RFC3339),
	}
}

var batchExportHeader = []string{
	"batch_code", "status", "factory_id", "item_count",
	"dispatch_date", "expected_return_date", "created_at",
}

func batchExportRow(batch *models.Batch) []string {
	factoryID := ""
	if batch.FactoryID != nil {
		factoryID = fmt.Sprint(*batch.FactoryID)
	}
	return []string{
		batch.BatchCode, string(batch.Status), factoryID, fmt.Sprint(batch.ItemCount),
		formatTimePtr(batch.DispatchDate), formatTimePtr(batch.ExpectedReturnDate),
		batch.CreatedAt.Format(time.RFC3339),
	}
}

var incidentExportHeader = []string{
	"id", "type", "status", "job_id", "batch_id", "description",
	"reported_by", "created_at", "resolved_at",
}

func incidentExportRow(incident *models.Incident) []string {
	jobID := ""
	if incident.JobID != nil {
		jobID = fmt.Sprint(*incident.JobID)
	}
	batchID := ""
	if incident.BatchID != nil {
		batchID = fmt.Sprint(*incident.BatchID)
	}
	return []string{
		fmt.Sprint(incident.ID), string(incident.Type), string(incident.Status),
		jobID, batchID, incident.Description, fmt.Sprint(incident.ReportedBy),
		incident.CreatedAt.Format(time.RFC3339), formatTimePtr(incident.ResolvedAt),
	}
}

// streamExportRows walks the requested entity in chunks and hands each row to
// emit. The header slice is returned up front so both renderers share it.
func streamExportRows(c *gin.Context, entity string, emit func(row []string) error) ([]string, func() error, bool) {
	ctx := c.Request.Context()
	switch entity {
	case "jobs":
		return jobExportHeader, func() error {
			return models.StreamJobsForExport(ctx, func(jobs []models.ItemJob) error {
				for i := range jobs {
					if err := emit(jobExportRow(&jobs[i])); err != nil {
						return err
					}
				}
				return nil
			})
		}, true
	case "batches":
		return batchExportHeader, func() error {
			return models.StreamBatchesForExport(ctx, func(batches []models.Batch) error {
				for i := range batches {
					if err := emit(batchExportRow(&batches[i])); err != nil {
						return err
					}
				}
				return nil
			})
		}, true
	case "incidents":
		return incidentExportHeader, func() error {
			return models.StreamIncidentsForExport(ctx, func(incidents []models.Incident) error {
				for i := range incidents {
					if err := emit(incidentExportRow(&incidents[i])); err != nil {
						return err
					}
				}
				return nil
			})
		}, true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "entity must be one of jobs, batches, incidents"})
	return nil, nil, false
}

func exportCSVHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.DefaultQuery("entity", "jobs")

		writer := csv.NewWriter(c.Writer)
		header, run, ok := streamExportRows(c, entity, func(row []string) error {
			return writer.Write(row)
		})
		if !ok {
			return
		}

		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", entity))
		if err := writer.Write(header); err != nil {
			config.LogError(logger, "reports.go", "exportCSVHandler", "write header", entity, err)
			return
		}
		if err := run(); err != nil {
			config.LogError(logger, "reports.go", "exportCSVHandler", "stream "+entity, nil, err)
			return
		}
		writer.Flush()
	}
}

func exportXLSXHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.DefaultQuery("entity", "jobs")

		f := excelize.NewFile()
		sheet := "Sheet1"
		rowNo := 2
		header, run, ok := streamExportRows(c, entity, func(row []string) error {
			for col, value := range row {
				cell, err := excelize.CoordinatesToCellName(col+1, rowNo)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(sheet, cell, value); err != nil {
					return err
				}
			}
			rowNo++
			return nil
		})
		if !ok {
			return
		}

		for col, value := range header {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				config.LogError(logger, "reports.go", "exportXLSXHandler", "header cell", entity, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				config.LogError(logger, "reports.go", "exportXLSXHandler", "header cell", entity, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
		}
		if err := run(); err != nil {
			config.LogError(logger, "reports.go", "exportXLSXHandler", "stream "+entity, nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", entity))
		if err := f.Write(c.Writer); err != nil {
			config.LogError(logger, "reports.go", "exportXLSXHandler", "write xlsx", entity, err)
		}
	}
}
