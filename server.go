package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/middlewares"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"bitbucket.org/mmdatafocus/tracking_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "rl:" + c.ClientIP()

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count == 1 {
		if err := rl.client.Expire(c.Request.Context(), key, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}
	if count > rl.limit {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		c.Abort()
		return
	}
	c.Next()
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// sessionActor builds the workflow actor from the authenticated claims.
func sessionActor(c *gin.Context) (workflow.Actor, bool) {
	ctx := c.Request.Context()
	userID, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return workflow.Actor{}, false
	}
	username, _ := utils.GetUsernameFromContext(ctx)
	roleStrings, _ := utils.GetUserRolesFromContext(ctx)
	roles := models.RolesFromStrings(roleStrings)
	if len(roles) == 0 {
		return workflow.Actor{}, false
	}
	return workflow.Actor{UserID: userID, Username: username, Roles: roles}, true
}

// requireRoles rejects requests whose actor holds none of the given roles.
func requireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := sessionActor(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		for _, want := range roles {
			for _, have := range actor.Roles {
				if have == want {
					c.Next()
					return
				}
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		c.Abort()
	}
}

func respondBindingError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
}

// respondWorkflowError maps workflow and lookup errors onto HTTP codes.
func respondWorkflowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, workflow.ErrOverrideForbidden),
		errors.Is(err, workflow.ErrRoleNotPermitted):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrInvalidHoldResolution),
		errors.Is(err, workflow.ErrNoPriorStatus),
		errors.Is(err, workflow.ErrTerminalStatus),
		errors.Is(err, workflow.ErrOverrideReasonRequired),
		errors.Is(err, workflow.ErrBatchRequired),
		errors.Is(err, workflow.ErrFactoryRequired),
		errors.Is(err, workflow.ErrFactoryMismatch),
		errors.Is(err, workflow.ErrFactoryInactive),
		errors.Is(err, workflow.ErrDuplicateBatchMembership),
		errors.Is(err, workflow.ErrBatchClosed),
		errors.Is(err, workflow.ErrBatchEmpty),
		errors.Is(err, workflow.ErrItemsNotDispatched),
		errors.Is(err, workflow.ErrItemsNotReturned),
		errors.Is(err, workflow.ErrReasonRequired),
		errors.Is(err, workflow.ErrVoucherRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorInactiveResource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		var dup *utils.DuplicateValueError
		if errors.As(err, &dup) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func registerRoutes(r *gin.Engine, logger *logrus.Logger) {
	anyRole := models.AllRoles

	auth := r.Group("/auth")
	{
		auth.POST("/login", loginHandler(logger))
		auth.POST("/refresh", refreshHandler(logger))
		auth.POST("/logout", requireRoles(anyRole...), logoutHandler(logger))
	}

	jobs := r.Group("/jobs")
	{
		jobs.POST("", requireRoles(models.RolePurchase, models.RoleAdmin), createJobHandler(logger))
		jobs.GET("", requireRoles(anyRole...), listJobsHandler(logger))
		jobs.GET("/metrics", requireRoles(anyRole...), jobMetricsHandler(logger))
		jobs.GET("/:job_code", requireRoles(anyRole...), getJobHandler(logger))
		jobs.PATCH("/:job_code", requireRoles(models.RoleAdmin), updateJobHandler(logger))
		jobs.POST("/:job_code/scan", requireRoles(anyRole...), scanJobHandler(logger))
		jobs.POST("/:job_code/label-print", requireRoles(anyRole...), labelPrintHandler(logger))
	}

	batches := r.Group("/batches")
	{
		batches.POST("", requireRoles(models.RoleDispatch, models.RoleAdmin), createBatchHandler(logger))
		batches.GET("", requireRoles(models.RoleAdmin, models.RoleDispatch, models.RoleFactory, models.RoleQCStock), listBatchesHandler(logger))
		batches.GET("/:id", requireRoles(models.RoleAdmin, models.RoleDispatch, models.RoleFactory, models.RoleQCStock), getBatchHandler(logger))
		batches.POST("/:id/items", requireRoles(models.RoleDispatch, models.RoleAdmin), addBatchItemHandler(logger))
		batches.POST("/:id/dispatch", requireRoles(models.RoleDispatch, models.RoleAdmin), dispatchBatchHandler(logger))
		batches.POST("/:id/close", requireRoles(models.RoleAdmin, models.RoleDispatch), closeBatchHandler(logger))
		batches.GET("/:id/manifest", requireRoles(models.RoleAdmin, models.RoleDispatch), batchManifestHandler(logger))
	}

	factories := r.Group("/factories")
	{
		factories.GET("", requireRoles(anyRole...), listFactoriesHandler(logger))
		factories.POST("", requireRoles(models.RoleAdmin), createFactoryHandler(logger))
		factories.PATCH("/:id", requireRoles(models.RoleAdmin), updateFactoryHandler(logger))
	}

	users := r.Group("/users", requireRoles(models.RoleAdmin))
	{
		users.GET("", listUsersHandler(logger))
		users.POST("", createUserHandler(logger))
		users.PATCH("/:id", updateUserHandler(logger))
	}

	audit := r.Group("/audit", requireRoles(models.RoleAdmin))
	{
		audit.GET("/events", listAuditEventsHandler(logger))
		audit.GET("/edits", listEditAuditsHandler(logger))
	}

	incidents := r.Group("/incidents")
	{
		incidents.POST("", requireRoles(anyRole...), createIncidentHandler(logger))
		incidents.GET("", requireRoles(anyRole...), listIncidentsHandler(logger))
		incidents.PATCH("/:id/resolve", requireRoles(models.RoleQCStock, models.RoleAdmin), resolveIncidentHandler(logger))
	}

	reports := r.Group("/reports")
	{
		reports.GET("/pending-aging", requireRoles(models.RoleAdmin, models.RoleDispatch, models.RoleQCStock), pendingAgingHandler(logger))
		reports.GET("/turnaround", requireRoles(models.RoleAdmin), turnaroundHandler(logger))
		reports.GET("/batch-delays", requireRoles(models.RoleAdmin, models.RoleDispatch), batchDelaysHandler(logger))
		reports.GET("/repair-targets", requireRoles(models.RoleAdmin, models.RoleDispatch, models.RoleQCStock), repairTargetsHandler(logger))
		reports.GET("/user-activity", requireRoles(models.RoleAdmin), userActivityHandler(logger))
		reports.GET("/export.csv", requireRoles(models.RoleAdmin), exportCSVHandler(logger))
		reports.GET("/export.xlsx", requireRoles(models.RoleAdmin), exportXLSXHandler(logger))
	}

	uploads := r.Group("/uploads", requireRoles(anyRole...))
	{
		uploads.POST("/sign", signUploadHandler(logger))
		uploads.POST("/complete", completeUploadHandler(logger))
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := redis.NewClient(&redis.Options{Addr: os.Getenv("REDIS_ADDRESS")})
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r, logger)
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Single-tenant default branch is resolved once here, not per request.
	if _, err := models.EnsureDefaultBranch(context.Background()); err != nil {
		logger.WithFields(logrus.Fields{"field": "branch"}).Panic("default branch seeding failed: " + err.Error())
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
