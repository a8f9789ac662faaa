package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"bitbucket.org/mmdatafocus/tracking_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func batchIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
		return 0, false
	}
	return id, true
}

func createBatchHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := sessionActor(c)
		var input workflow.NewBatch
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		if input.Month < 0 || input.Month > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
			return
		}

		batch, err := workflow.CreateBatch(c.Request.Context(), logger, &input, actor)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, batch)
	}
}

func listBatchesHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.BatchFilter{
			Limit:  parseIntQuery(c, "limit", config.SearchLimit),
			Offset: parseIntQuery(c, "offset", 0),
		}
		if raw := c.Query("status"); raw != "" {
			status, err := models.ParseBatchStatus(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			filter.Status = &status
		}
		if raw := c.Query("factory_id"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid factory_id"})
				return
			}
			filter.FactoryID = &id
		}
		var ok bool
		if filter.FromDate, ok = parseTimeQuery(c, "from_date"); !ok {
			return
		}
		if filter.ToDate, ok = parseTimeQuery(c, "to_date"); !ok {
			return
		}

		batches, err := models.ListBatches(c.Request.Context(), &filter)
		if err != nil {
			config.LogError(logger, "batches.go", "listBatchesHandler", "ListBatches", filter, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, batches)
	}
}

func getBatchHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := batchIDParam(c)
		if !ok {
			return
		}
		batch, err := models.GetBatchByIdWithItems(c.Request.Context(), id)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, batch)
	}
}

type addBatchItemRequest struct {
	JobCode string `json:"job_code" binding:"required"`
}

func addBatchItemHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := sessionActor(c)
		id, ok := batchIDParam(c)
		if !ok {
			return
		}
		var req addBatchItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}

		batch, err := workflow.AddItemToBatch(c.Request.Context(), logger, id, req.JobCode, actor)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, batch)
	}
}

func dispatchBatchHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := sessionActor(c)
		id, ok := batchIDParam(c)
		if !ok {
			return
		}
		var input workflow.BatchDispatchInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}

		batch, err := workflow.DispatchBatch(c.Request.Context(), logger, id, &input, actor)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, batch)
	}
}

func closeBatchHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := sessionActor(c)
		id, ok := batchIDParam(c)
		if !ok {
			return
		}

		batch, err := workflow.CloseBatch(c.Request.Context(), logger, id, actor)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, batch)
	}
}

// batchManifestHandler returns the flattened manifest rows an external
// renderer turns into the printed dispatch sheet.
func batchManifestHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := batchIDParam(c)
		if !ok {
			return
		}
		batch, err := models.GetBatchByIdWithItems(c.Request.Context(), id)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}

		rows := make([]gin.H, 0, len(batch.Items))
		for _, item := range batch.Items {
			if item.Job == nil {
				continue
			}
			rows = append(rows, gin.H{
				"job_code":           item.Job.JobCode,
				"item_description":   item.Job.ItemDescription,
				"approximate_weight": item.Job.ApproximateWeight,
				"diamond_cent":       item.Job.DiamondCent,
				"work_narration":     item.Job.WorkNarration,
				"current_status":     item.Job.CurrentStatus,
				"added_at":           item.AddedAt,
			})
		}

		factoryName := ""
		if batch.Factory != nil {
			factoryName = batch.Factory.Name
		}
		c.JSON(http.StatusOK, gin.H{
			"batch_code":           batch.BatchCode,
			"status":               batch.Status,
			"factory_name":         factoryName,
			"dispatch_date":        batch.DispatchDate,
			"expected_return_date": batch.ExpectedReturnDate,
			"item_count":           batch.ItemCount,
			"items":                rows,
		})
	}
}
