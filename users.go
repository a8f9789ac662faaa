package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func listUsersHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := models.ListUsers(c.Request.Context())
		if err != nil {
			config.LogError(logger, "users.go", "listUsersHandler", "ListUsers", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func createUserHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func updateUserHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		var input models.UpdateUserInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		user, err := models.UpdateUser(c.Request.Context(), id, &input)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}

		// Deactivation revokes outstanding refresh tokens so the session
		// cannot be renewed.
		if input.IsActive != nil && !*input.IsActive {
			if err := models.RevokeUserRefreshTokens(c.Request.Context(), user.ID); err != nil {
				config.LogError(logger, "users.go", "updateUserHandler", "RevokeUserRefreshTokens", user.ID, err)
			}
		}
		c.JSON(http.StatusOK, user)
	}
}
