package main

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func createIncidentHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := sessionActor(c)
		var input models.NewIncident
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		if !input.Type.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident type"})
			return
		}

		incident, err := models.CreateIncident(c.Request.Context(), &input, actor.UserID)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, incident)
	}
}

func listIncidentsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.IncidentFilter{
			Limit:  parseIntQuery(c, "limit", config.SearchLimit),
			Offset: parseIntQuery(c, "offset", 0),
		}
		if raw := c.Query("status"); raw != "" {
			status, err := models.ParseIncidentStatus(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			filter.Status = &status
		}
		if raw := c.Query("type"); raw != "" {
			incidentType, err := models.ParseIncidentType(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type"})
				return
			}
			filter.Type = &incidentType
		}
		var ok bool
		if filter.JobID, ok = optionalIntQuery(c, "job_id"); !ok {
			return
		}
		if filter.BatchID, ok = optionalIntQuery(c, "batch_id"); !ok {
			return
		}

		incidents, err := models.ListIncidents(c.Request.Context(), &filter)
		if err != nil {
			config.LogError(logger, "incidents.go", "listIncidentsHandler", "ListIncidents", filter, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, incidents)
	}
}

type resolveIncidentRequest struct {
	Notes string `json:"notes"`
}

func resolveIncidentHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident id"})
			return
		}
		// Resolution notes are optional; an empty body is fine.
		var req resolveIncidentRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		incident, err := models.ResolveIncident(c.Request.Context(), id, req.Notes)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, incident)
	}
}
