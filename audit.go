package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func optionalIntQuery(c *gin.Context, name string) (*int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return nil, false
	}
	return &n, true
}

func listAuditEventsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.StatusEventFilter{
			Limit:  parseIntQuery(c, "limit", config.SearchLimit),
			Offset: parseIntQuery(c, "offset", 0),
		}
		var ok bool
		if filter.JobID, ok = optionalIntQuery(c, "job_id"); !ok {
			return
		}
		if filter.UserID, ok = optionalIntQuery(c, "user_id"); !ok {
			return
		}
		for _, raw := range c.QueryArray("statuses") {
			status, err := models.ParseStatus(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status " + raw})
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
		filter.Statuses = utils.UniqueSlice(filter.Statuses)
		if filter.FromDate, ok = parseTimeQuery(c, "from_date"); !ok {
			return
		}
		if filter.ToDate, ok = parseTimeQuery(c, "to_date"); !ok {
			return
		}

		events, err := models.ListStatusEvents(c.Request.Context(), &filter)
		if err != nil {
			config.LogError(logger, "audit.go", "listAuditEventsHandler", "ListStatusEvents", filter, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

func listEditAuditsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.JobEditAuditFilter{
			Limit:  parseIntQuery(c, "limit", config.SearchLimit),
			Offset: parseIntQuery(c, "offset", 0),
		}
		var ok bool
		if filter.JobID, ok = optionalIntQuery(c, "job_id"); !ok {
			return
		}
		if filter.UserID, ok = optionalIntQuery(c, "user_id"); !ok {
			return
		}
		if filter.FromDate, ok = parseTimeQuery(c, "from_date"); !ok {
			return
		}
		if filter.ToDate, ok = parseTimeQuery(c, "to_date"); !ok {
			return
		}

		audits, err := models.ListJobEditAudits(c.Request.Context(), &filter)
		if err != nil {
			config.LogError(logger, "audit.go", "listEditAuditsHandler", "ListJobEditAudits", filter, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, audits)
	}
}
