package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type uploadSignRequest struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	// Entity scopes the object key: "jobs" for item photos,
	// "incidents" for incident attachments.
	Entity  string `json:"entity"`
	JobCode string `json:"job_code"`
}

type uploadCompleteRequest struct {
	ObjectKey string `json:"object_key"`
	MimeType  string `json:"mime_type"`
}

type uploadSignResponse struct {
	UploadURL string            `json:"upload_url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"object_key"`
	AccessURL string            `json:"access_url"`
	ExpiresAt string            `json:"expires_at"`
}

type uploadCompleteResponse struct {
	ObjectKey          string `json:"object_key"`
	URL                string `json:"url"`
	ThumbnailObjectKey string `json:"thumbnail_object_key,omitempty"`
	ThumbnailURL       string `json:"thumbnail_url,omitempty"`
}

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

func signUploadHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req uploadSignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.FileName == "" || req.MimeType == "" || req.Size <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file_name, mime_type and size are required"})
			return
		}
		if req.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		if !imageMimeTypes[req.MimeType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
			return
		}

		objectKey := utils.BuildUploadObjectKey(req.Entity, req.JobCode, req.FileName, req.MimeType)

		if utils.GetStorageProvider() != utils.StorageProviderGCS {
			c.JSON(http.StatusBadRequest, gin.H{"error": "storage provider not supported"})
			return
		}

		signed, err := utils.SignUpload(c.Request.Context(), objectKey, req.MimeType, 15*time.Minute)
		if err != nil {
			logUploadError(logger, c, err)
			message := "failed to sign upload"
			if !strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
				message = fmt.Sprintf("failed to sign upload: %v", err)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": message})
			return
		}

		logger.WithFields(logrus.Fields{
			"mime_type":  req.MimeType,
			"size":       req.Size,
			"object_key": objectKey,
		}).Info("[upload.sign]")

		c.JSON(http.StatusOK, uploadSignResponse{
			UploadURL: signed.UploadURL,
			Method:    signed.Method,
			Headers:   signed.Headers,
			ObjectKey: signed.ObjectKey,
			AccessURL: signed.AccessURL,
			ExpiresAt: signed.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
}

// completeUploadHandler runs after the browser finishes the signed PUT. It
// generates the thumbnail and returns the URLs the client stores on the job
// photo list or incident attachment.
func completeUploadHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req uploadCompleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		key := strings.TrimSpace(req.ObjectKey)
		if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object_key"})
			return
		}

		exists, err := utils.ObjectExistsInGCS(c.Request.Context(), key)
		if err != nil {
			logUploadError(logger, c, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
			return
		}
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}

		response := uploadCompleteResponse{
			ObjectKey: key,
			URL:       utils.BuildObjectAccessURL(key),
		}

		thumbnailKey, err := createThumbnail(c.Request.Context(), key)
		if err != nil {
			logUploadError(logger, c, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate thumbnail"})
			return
		}
		response.ThumbnailObjectKey = thumbnailKey
		response.ThumbnailURL = utils.BuildObjectAccessURL(thumbnailKey)

		logger.WithFields(logrus.Fields{
			"object_key": key,
			"status":     "completed",
		}).Info("[upload.complete]")

		c.JSON(http.StatusOK, response)
	}
}

func createThumbnail(ctx context.Context, objectKey string) (string, error) {
	data, err := utils.DownloadObjectFromGCS(ctx, objectKey)
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxUploadSizeBytes {
		return "", fmt.Errorf("file size exceeds 5MB limit")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return "", err
	}

	thumbnailKey := thumbnailObjectKey(objectKey)
	if err := utils.UploadBytesToGCS(ctx, thumbnailKey, buf.Bytes(), "image/jpeg"); err != nil {
		return "", err
	}
	return thumbnailKey, nil
}

func thumbnailObjectKey(objectKey string) string {
	dir := path.Dir(objectKey)
	filename := path.Base(objectKey)
	return path.Join(dir, "thumbnails", filename)
}

func logUploadError(logger *logrus.Logger, c *gin.Context, err error) {
	correlationId, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
	logger.WithFields(logrus.Fields{
		"error":          err.Error(),
		"provider":       utils.GetStorageProvider(),
		"correlation_id": correlationId,
	}).Error("[upload.error]")
}
