package main

import (
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"bitbucket.org/mmdatafocus/tracking_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Date-only filters are common from the web client.
		t, err = time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
			return nil, false
		}
	}
	return &t, true
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func createJobHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := sessionActor(c)
		var input models.NewJob
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		if input.ItemSource != nil && !input.ItemSource.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item_source"})
			return
		}
		if input.RepairType != nil && !input.RepairType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid repair_type"})
			return
		}

		job, err := workflow.CreateJob(c.Request.Context(), logger, &input, actor)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, job)
	}
}

func listJobsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.JobFilter{
			Phone:   c.Query("phone"),
			JobCode: c.Query("job_code"),
			SortBy:  c.DefaultQuery("sort_by", "created_at"),
			SortDir: c.DefaultQuery("sort_dir", "desc"),
			Limit:   parseIntQuery(c, "limit", config.SearchLimit),
			Offset:  parseIntQuery(c, "offset", 0),
		}
		if raw := c.Query("status"); raw != "" {
			status, err := models.ParseStatus(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			filter.Status = &status
		}
		if raw := c.Query("batch_id"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch_id"})
				return
			}
			filter.BatchID = &id
		}
		var ok bool
		if filter.FromDate, ok = parseTimeQuery(c, "from_date"); !ok {
			return
		}
		if filter.ToDate, ok = parseTimeQuery(c, "to_date"); !ok {
			return
		}

		jobs, err := models.ListJobs(c.Request.Context(), &filter)
		if err != nil {
			config.LogError(logger, "jobs.go", "listJobsHandler", "ListJobs", filter, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, jobs)
	}
}

func jobMetricsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var statuses []models.Status
		for _, raw := range c.QueryArray("statuses") {
			status, err := models.ParseStatus(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status " + raw})
				return
			}
			statuses = append(statuses, status)
		}
		statuses = utils.UniqueSlice(statuses)
		fromDate, ok := parseTimeQuery(c, "from_date")
		if !ok {
			return
		}
		toDate, ok := parseTimeQuery(c, "to_date")
		if !ok {
			return
		}

		metrics, err := models.JobMetrics(c.Request.Context(), statuses, fromDate, toDate)
		if err != nil {
			config.LogError(logger, "jobs.go", "jobMetricsHandler", "JobMetrics", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, metrics)
	}
}

func getJobHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := models.GetJobByCode(c.Request.Context(), c.Param("job_code"))
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		events, err := models.ListJobEvents(c.Request.Context(), job.ID)
		if err != nil {
			config.LogError(logger, "jobs.go", "getJobHandler", "ListJobEvents", job.JobCode, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"job": job, "status_events": events})
	}
}

func updateJobHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := sessionActor(c)
		var input models.UpdateJobInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		if input.ItemSource != nil && !input.ItemSource.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item_source"})
			return
		}
		if input.RepairType != nil && !input.RepairType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid repair_type"})
			return
		}

		job, err := workflow.EditJob(c.Request.Context(), logger, c.Param("job_code"), &input, actor)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

type scanRequest struct {
	ToStatus       string `json:"to_status" binding:"required"`
	BatchID        *int   `json:"batch_id"`
	FactoryID      *int   `json:"factory_id"`
	OverrideReason string `json:"override_reason"`
	Location       string `json:"location"`
	DeviceID       string `json:"device_id"`
	Remarks        string `json:"remarks"`
	IncidentFlag   bool   `json:"incident_flag"`
}

func scanJobHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := sessionActor(c)
		var req scanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}
		target, err := models.ParseStatus(req.ToStatus)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to_status"})
			return
		}

		input := workflow.ScanInput{
			TargetStatus:   target,
			BatchID:        req.BatchID,
			FactoryID:      req.FactoryID,
			OverrideReason: req.OverrideReason,
			Location:       req.Location,
			DeviceID:       req.DeviceID,
			Remarks:        req.Remarks,
			IncidentFlag:   req.IncidentFlag,
		}
		event, err := workflow.ApplyScan(c.Request.Context(), logger, c.Param("job_code"), &input, actor)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

// labelPrintHandler returns the data an external renderer needs to produce
// the physical label, and records the print by auto-advancing PURCHASED jobs
// to PACKED_READY.
func labelPrintHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := sessionActor(c)
		job, err := models.GetJobByCode(c.Request.Context(), c.Param("job_code"))
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		factoryName, err := models.ResolveFactoryName(c.Request.Context(), job)
		if err != nil {
			config.LogError(logger, "jobs.go", "labelPrintHandler", "ResolveFactoryName", job.JobCode, err)
		}
		branch, err := models.DefaultBranch(c.Request.Context())
		branchName := models.DefaultBranchName
		if err == nil {
			branchName = branch.Name
		}

		advanced, err := workflow.RecordLabelPrint(c.Request.Context(), logger, job.JobCode, actor)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		if advanced {
			job, err = models.GetJobByCode(c.Request.Context(), job.JobCode)
			if err != nil {
				respondWorkflowError(c, err)
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"job":          job,
			"branch_name":  branchName,
			"factory_name": factoryName,
			"advanced":     advanced,
		})
	}
}
