package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	loginMaxAttempts = 5
	loginWindow      = 5 * time.Minute
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func issueTokens(c *gin.Context, user *models.User) (*tokenResponse, error) {
	access, err := utils.JwtGenerate(user.ID, user.Username, models.RoleStrings(user.Roles))
	if err != nil {
		return nil, err
	}
	jti := uuid.NewString()
	refresh, err := utils.JwtGenerateRefresh(user.ID, user.Username, jti)
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(utils.RefreshTokenLifespan())
	if err := models.CreateRefreshToken(c.Request.Context(), user.ID, jti, expiresAt); err != nil {
		return nil, err
	}
	return &tokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func loginHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		// Throttled per username+IP so one noisy source cannot lock out a
		// user from elsewhere.
		key := fmt.Sprintf("login:%s:%s", req.Username, c.ClientIP())
		attempts, err := config.IncrRedisCounterWithWindow(c.Request.Context(), key, loginWindow)
		if err != nil {
			config.LogError(logger, "auth.go", "loginHandler", "RateLimit", req.Username, err)
		} else if attempts > loginMaxAttempts {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
			return
		}

		user, err := models.GetUserByUsername(c.Request.Context(), req.Username)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			config.LogError(logger, "auth.go", "loginHandler", "GetUserByUsername", req.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if err := utils.ComparePassword(user.Password, req.Password); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if user.IsActive != nil && !*user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "user inactive"})
			return
		}

		tokens, err := issueTokens(c, user)
		if err != nil {
			config.LogError(logger, "auth.go", "loginHandler", "IssueTokens", user.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, tokens)
	}
}

func refreshHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
			return
		}

		claims, err := utils.JwtValidateRefresh(req.RefreshToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}

		stored, err := models.GetRefreshToken(c.Request.Context(), claims.Jti)
		if err != nil || stored.Revoked {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token revoked"})
			return
		}
		if stored.ExpiresAt.Before(time.Now().UTC()) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token expired"})
			return
		}

		user, err := models.GetUserById(c.Request.Context(), stored.UserID)
		if err != nil || (user.IsActive != nil && !*user.IsActive) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user"})
			return
		}

		// Rotate: the redeemed token dies with the new issuance.
		if err := models.RevokeRefreshToken(c.Request.Context(), claims.Jti); err != nil {
			config.LogError(logger, "auth.go", "refreshHandler", "RevokeRefreshToken", claims.Jti, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		tokens, err := issueTokens(c, user)
		if err != nil {
			config.LogError(logger, "auth.go", "refreshHandler", "IssueTokens", user.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, tokens)
	}
}

func logoutHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
			return
		}

		claims, err := utils.JwtValidateRefresh(req.RefreshToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		if err := models.RevokeRefreshToken(c.Request.Context(), claims.Jti); err != nil {
			config.LogError(logger, "auth.go", "logoutHandler", "RevokeRefreshToken", claims.Jti, err)
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
