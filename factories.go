package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func listFactoriesHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := c.DefaultQuery("active_only", "true") != "false"
		factories, err := models.ListFactories(c.Request.Context(), activeOnly)
		if err != nil {
			config.LogError(logger, "factories.go", "listFactoriesHandler", "ListFactories", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, factories)
	}
}

func createFactoryHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewFactory
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		factory, err := models.CreateFactory(c.Request.Context(), &input)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, factory)
	}
}

func updateFactoryHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid factory id"})
			return
		}
		var input models.UpdateFactoryInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		factory, err := models.UpdateFactory(c.Request.Context(), id, &input)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, factory)
	}
}
